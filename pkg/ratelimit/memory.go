package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DuplicateAttempt is one entry of the audit trail.
type DuplicateAttempt struct {
	Identity    string    `json:"identity"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

// MemoryStore keeps counters in process memory and removes counters whose
// window ended more than MaxAge ago.
type MemoryStore struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	duplicates []DuplicateAttempt
	maxAge     time.Duration
	now        func() time.Time
	done       chan struct{}
	stopOnce   sync.Once
}

var _ CounterStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store and starts its cleanup goroutine. A zero
// cleanupInterval disables the goroutine.
func NewMemoryStore(cleanupInterval, maxAge time.Duration) *MemoryStore {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	s := &MemoryStore{
		counters: make(map[string]*Counter),
		maxAge:   maxAge,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanup(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, identity string) (*Counter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.counters[identity]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) Reset(ctx context.Context, identity string, resetAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[identity] = &Counter{Identity: identity, Count: 1, ResetAt: resetAt}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, identity string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[identity]
	if !ok {
		return 0, ErrCounterNotFound
	}
	c.Count++
	return c.Count, nil
}

func (s *MemoryStore) RecordDuplicate(ctx context.Context, identity string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates = append(s.duplicates, DuplicateAttempt{Identity: identity, AttemptedAt: at})
	return nil
}

// Duplicates returns a copy of the audit trail, oldest first.
func (s *MemoryStore) Duplicates() []DuplicateAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]DuplicateAttempt(nil), s.duplicates...)
}

// Len returns the number of tracked identities.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// Stop stops the cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired drops counters whose window ended more than maxAge ago.
func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.maxAge)
	for id, c := range s.counters {
		if c.ResetAt.Before(cutoff) {
			delete(s.counters, id)
		}
	}
}
