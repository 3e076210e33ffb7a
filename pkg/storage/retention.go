package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/telekom/inquiry-pipeline/pkg/metrics"
)

// RetentionPolicy says how long each kind of row is kept. A zero duration
// keeps rows of that kind forever.
type RetentionPolicy struct {
	// Deliveries applies to sent and failed records only. Pending records are never purged.
	Deliveries time.Duration
	// Counters applies to rate limit rows, measured from the end of their window.
	Counters time.Duration
	// Audit applies to duplicate attempts.
	Audit time.Duration
}

// PurgeStats counts removed rows per table.
type PurgeStats struct {
	Deliveries int64 `json:"deliveries"`
	Counters   int64 `json:"counters"`
	Audit      int64 `json:"audit"`
}

// Purge deletes rows that fall outside the policy, relative to now.
func (db *DB) Purge(ctx context.Context, policy RetentionPolicy, now time.Time) (PurgeStats, error) {
	var stats PurgeStats

	if policy.Deliveries > 0 {
		n, err := db.Deliveries().Purge(ctx, now.Add(-policy.Deliveries))
		if err != nil {
			return stats, err
		}
		stats.Deliveries = n
	}
	if policy.Counters > 0 {
		res, err := db.readWriteDB.ExecContext(ctx, `DELETE FROM rate_limits WHERE reset_time<?`, toMillis(now.Add(-policy.Counters)))
		if err != nil {
			return stats, errors.Wrap(err, "failed to purge rate limit counters")
		}
		stats.Counters, _ = res.RowsAffected()
	}
	if policy.Audit > 0 {
		res, err := db.readWriteDB.ExecContext(ctx, `DELETE FROM duplicate_attempts WHERE attempted_at<?`, toMillis(now.Add(-policy.Audit)))
		if err != nil {
			return stats, errors.Wrap(err, "failed to purge duplicate attempts")
		}
		stats.Audit, _ = res.RowsAffected()
	}

	metrics.RecordsPurged.WithLabelValues("failed_emails").Add(float64(stats.Deliveries))
	metrics.RecordsPurged.WithLabelValues("rate_limits").Add(float64(stats.Counters))
	metrics.RecordsPurged.WithLabelValues("duplicate_attempts").Add(float64(stats.Audit))
	db.log.Infow("Retention purge finished", "deliveries", stats.Deliveries, "counters", stats.Counters, "audit", stats.Audit)
	return stats, nil
}
