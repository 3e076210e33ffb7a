package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/metrics"
)

// Counter is the persisted state of one identity's window.
type Counter struct {
	Identity string
	Count    int
	ResetAt  time.Time
}

// CounterStore persists counters and the duplicate-attempt trail.
type CounterStore interface {
	// Get returns the counter for identity, or nil when none exists.
	Get(ctx context.Context, identity string) (*Counter, error)
	// Reset starts a new window with count 1, creating the row if needed.
	Reset(ctx context.Context, identity string, resetAt time.Time) error
	// Increment atomically adds one to the count and returns the new value.
	Increment(ctx context.Context, identity string) (int, error)
	// RecordDuplicate appends a rejected attempt to the audit trail.
	RecordDuplicate(ctx context.Context, identity string, at time.Time) error
}

// Config holds rate limiter configuration
type Config struct {
	// Limit is the number of requests allowed per window
	Limit int
	// Window is the length of a counting window
	Window time.Duration
	// Timeout bounds every store call of one decision
	Timeout time.Duration
}

// DefaultConfig allows 100 requests per minute.
func DefaultConfig() Config {
	return Config{
		Limit:   100,
		Window:  time.Minute,
		Timeout: 5 * time.Second,
	}
}

// Decision is the result of one admission check.
type Decision struct {
	Allowed bool
	// Count is the number of admitted requests in the current window.
	Count   int
	ResetAt time.Time
}

// RetryAfter is the time until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

var (
	ErrInvalidLimit    = errors.New("rate limit and window must be positive")
	ErrCounterNotFound = errors.New("rate limit counter not found")
)

// FixedWindow admits up to Limit requests per identity in each window.
// Concurrent requests for the same identity may overcount slightly, which
// errs towards rejecting.
type FixedWindow struct {
	store CounterStore
	cfg   Config
	now   func() time.Time
	log   *zap.SugaredLogger
}

// New creates a fixed-window limiter. Zero values in cfg fall back to DefaultConfig.
func New(store CounterStore, cfg Config, log *zap.SugaredLogger) *FixedWindow {
	d := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = d.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &FixedWindow{store: store, cfg: cfg, now: time.Now, log: log}
}

// WithClock replaces the time source. Intended for tests.
func (l *FixedWindow) WithClock(now func() time.Time) *FixedWindow {
	l.now = now
	return l
}

// Config returns the effective configuration.
func (l *FixedWindow) Config() Config {
	return l.cfg
}

// Allow checks identity against the configured limit and window.
func (l *FixedWindow) Allow(ctx context.Context, identity string) (Decision, error) {
	return l.AllowWith(ctx, identity, l.cfg.Limit, l.cfg.Window)
}

// AllowWith checks identity against an explicit limit and window.
func (l *FixedWindow) AllowWith(ctx context.Context, identity string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	now := l.now().UTC()
	c, err := l.store.Get(ctx, identity)
	if err != nil {
		return Decision{}, fmt.Errorf("load rate limit counter: %w", err)
	}

	if c == nil || now.After(c.ResetAt) {
		resetAt := now.Add(window)
		if err := l.store.Reset(ctx, identity, resetAt); err != nil {
			return Decision{}, fmt.Errorf("reset rate limit counter: %w", err)
		}
		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		return Decision{Allowed: true, Count: 1, ResetAt: resetAt}, nil
	}

	if c.Count < limit {
		n, err := l.store.Increment(ctx, identity)
		if err != nil {
			return Decision{}, fmt.Errorf("increment rate limit counter: %w", err)
		}
		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		return Decision{Allowed: true, Count: n, ResetAt: c.ResetAt}, nil
	}

	metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
	if err := l.store.RecordDuplicate(ctx, identity, now); err != nil {
		// the rejection stands even when the audit write fails
		l.log.Errorw("Failed to record duplicate attempt", "identity", identity, "error", err)
	} else {
		metrics.DuplicateAttempts.Inc()
	}
	l.log.Infow("Rate limit exceeded", "identity", identity, "count", c.Count, "limit", limit, "resetAt", c.ResetAt)
	return Decision{Allowed: false, Count: c.Count, ResetAt: c.ResetAt}, nil
}
