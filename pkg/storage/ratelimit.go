package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/telekom/inquiry-pipeline/pkg/ratelimit"
)

// RateLimitStore keeps fixed-window counters in rate_limits and the audit
// trail in duplicate_attempts.
type RateLimitStore struct {
	db *DB
}

var _ ratelimit.CounterStore = (*RateLimitStore)(nil)

func (s *RateLimitStore) Get(ctx context.Context, identity string) (*ratelimit.Counter, error) {
	query := `SELECT count, reset_time FROM rate_limits WHERE identifier=?`
	var (
		count   int
		resetMs int64
	)
	err := s.db.readWriteDB.QueryRowContext(ctx, query, identity).Scan(&count, &resetMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to select rate limit counter")
	}
	return &ratelimit.Counter{Identity: identity, Count: count, ResetAt: fromMillis(resetMs)}, nil
}

func (s *RateLimitStore) Reset(ctx context.Context, identity string, resetAt time.Time) error {
	query := `INSERT INTO rate_limits(identifier, count, reset_time) VALUES(?, 1, ?)
    ON CONFLICT(identifier) DO UPDATE SET count=1, reset_time=excluded.reset_time`
	if _, err := s.db.readWriteDB.ExecContext(ctx, query, identity, toMillis(resetAt)); err != nil {
		return errors.Wrap(err, "failed to reset rate limit counter")
	}
	return nil
}

func (s *RateLimitStore) Increment(ctx context.Context, identity string) (int, error) {
	query := `UPDATE rate_limits SET count=count+1 WHERE identifier=? RETURNING count`
	var n int
	err := s.db.readWriteDB.QueryRowContext(ctx, query, identity).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ratelimit.ErrCounterNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to increment rate limit counter")
	}
	return n, nil
}

func (s *RateLimitStore) RecordDuplicate(ctx context.Context, identity string, at time.Time) error {
	query := `INSERT INTO duplicate_attempts(ip_hash, attempted_at) VALUES(?, ?)`
	if _, err := s.db.readWriteDB.ExecContext(ctx, query, identity, toMillis(at)); err != nil {
		return errors.Wrap(err, "failed to insert duplicate attempt")
	}
	return nil
}

// Duplicates returns the audit trail for identity, oldest first. An empty
// identity returns all entries.
func (s *RateLimitStore) Duplicates(ctx context.Context, identity string) ([]ratelimit.DuplicateAttempt, error) {
	query := `SELECT ip_hash, attempted_at FROM duplicate_attempts`
	var args []any
	if identity != "" {
		query += ` WHERE ip_hash=?`
		args = append(args, identity)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select duplicate attempts")
	}
	defer rows.Close()

	var out []ratelimit.DuplicateAttempt
	for rows.Next() {
		var (
			d  ratelimit.DuplicateAttempt
			ms int64
		)
		if err := rows.Scan(&d.Identity, &ms); err != nil {
			return nil, errors.Wrap(err, "failed to scan duplicate attempt")
		}
		d.AttemptedAt = fromMillis(ms)
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate duplicate attempts")
}
