package inquiry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
)

const DefaultSweepInterval = 5 * time.Minute

// SweepRoutine replays failed deliveries on a fixed interval. AfterSweep, when
// set, runs after every sweep regardless of its result.
type SweepRoutine struct {
	Log        *zap.SugaredLogger
	Service    *Service
	Interval   time.Duration
	AfterSweep func(ctx context.Context)
}

// Start blocks until ctx is done. The first sweep runs immediately.
func (r SweepRoutine) Start(ctx context.Context) {
	log := r.Log.With("component", "SweepRoutine")
	if r.Interval <= 0 {
		r.Interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	log.Infow("Starting failed delivery sweeper", "interval", r.Interval.String())
	r.runOnce(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Infow("Failed delivery sweeper stopping (context done)")
			return
		case <-ticker.C:
			r.runOnce(ctx, log)
		}
	}
}

func (r SweepRoutine) runOnce(ctx context.Context, log *zap.SugaredLogger) {
	_, err := r.Service.ProcessFailedDeliveries(ctx)
	switch {
	case errors.Is(err, delivery.ErrSweepInProgress):
		log.Infow("Skipping scheduled sweep, another sweep is still running")
	case err != nil:
		log.Errorw("Failed delivery sweep failed", "error", err)
	}
	if r.AfterSweep != nil && ctx.Err() == nil {
		r.AfterSweep(ctx)
	}
}
