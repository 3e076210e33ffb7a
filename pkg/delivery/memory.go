// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It is used by tests and when the
// service runs without a database file.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*Record{}, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Enqueue(ctx context.Context, channel Channel, payload Payload, cause error) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !channel.Valid() {
		return Record{}, fmt.Errorf("%w %q", ErrUnknownChannel, channel)
	}
	now := s.now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		Channel:   channel,
		Payload:   payload,
		LastError: errString(cause),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := rec
	s.records[rec.ID] = &stored
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *MemoryStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r := s.records[id]; r.Status == StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *MemoryStore) pending(id string) (*Record, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	return r, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.pending(id)
	if err != nil {
		return err
	}
	r.Status = StatusSent
	r.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id, lastErr string, maxRetries int) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.pending(id)
	if err != nil {
		return Outcome{}, err
	}
	r.RetryCount++
	r.LastError = lastErr
	if r.RetryCount >= maxRetries {
		r.Status = StatusFailed
	}
	r.UpdatedAt = s.now().UTC()
	return Outcome{RetryCount: r.RetryCount, Status: r.Status}, nil
}

func (s *MemoryStore) List(ctx context.Context, status Status, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.records[s.order[i]]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Purge drops terminal records last updated before olderThan.
func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	kept := s.order[:0]
	for _, id := range s.order {
		r := s.records[id]
		if r.Status.Terminal() && r.UpdatedAt.Before(olderThan) {
			delete(s.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed, nil
}

// Get returns a copy of the record with the given id.
func (s *MemoryStore) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Len returns the number of stored records grouped by status.
func (s *MemoryStore) Len() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[Status]int{}
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts
}
