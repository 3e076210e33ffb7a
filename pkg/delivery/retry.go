// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/telekom/inquiry-pipeline/pkg/metrics"
)

var tracer = otel.Tracer("github.com/telekom/inquiry-pipeline/pkg/delivery")

// RetryConfig controls a retry sweep.
type RetryConfig struct {
	// MaxRetries is the retry count at which a record becomes failed.
	MaxRetries int
	// AdminAddress receives escalation alerts. Empty disables alerts.
	AdminAddress string
	// BatchSize caps how many pending records one sweep picks up.
	BatchSize int
	// Concurrency is the number of records replayed in parallel.
	Concurrency int
	// MailsPerSecond paces replays. Zero means unpaced.
	MailsPerSecond float64
	Timeouts       Timeouts
}

// DefaultRetryConfig returns a sequential, unpaced configuration with three retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BatchSize:   50,
		Concurrency: 1,
		Timeouts:    DefaultTimeouts(),
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	c.Timeouts = c.Timeouts.withDefaults()
	return c
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
	Escalated int `json:"escalated"`
	// Errors counts records whose state could not be updated.
	Errors int `json:"errors"`
}

type replayOutcome struct {
	status    Status
	escalated bool
	err       error
}

func (r *SweepResult) add(o replayOutcome) {
	r.Processed++
	if o.err != nil {
		r.Errors++
		return
	}
	switch o.status {
	case StatusSent:
		r.Sent++
	case StatusPending:
		r.Retrying++
	case StatusFailed:
		r.Failed++
	}
	if o.escalated {
		r.Escalated++
	}
}

// RetryProcessor replays pending failed deliveries and escalates records
// that reach the retry cap.
type RetryProcessor struct {
	store   Store
	sender  Sender
	cfg     RetryConfig
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	// running admits one sweep at a time so no record is replayed twice.
	running sync.Mutex
}

func NewRetryProcessor(store Store, sender Sender, cfg RetryConfig, log *zap.SugaredLogger) *RetryProcessor {
	cfg = cfg.withDefaults()
	p := &RetryProcessor{store: store, sender: sender, cfg: cfg, log: log}
	if cfg.MailsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.MailsPerSecond), 1)
	}
	return p
}

// Config returns the effective configuration.
func (p *RetryProcessor) Config() RetryConfig {
	return p.cfg
}

// Sweep processes one batch of pending records. Cancelling ctx stops the
// sweep from picking up further records; replays already in flight finish
// their bookkeeping. A call made while another sweep is running returns
// ErrSweepInProgress without touching the queue.
func (p *RetryProcessor) Sweep(ctx context.Context) (SweepResult, error) {
	if !p.running.TryLock() {
		metrics.SweepRuns.WithLabelValues("skipped").Inc()
		return SweepResult{}, ErrSweepInProgress
	}
	defer p.running.Unlock()

	ctx, span := tracer.Start(ctx, "delivery.Sweep")
	defer span.End()

	res, err := p.sweep(ctx)
	span.SetAttributes(
		attribute.Int("sweep.processed", res.Processed),
		attribute.Int("sweep.sent", res.Sent),
		attribute.Int("sweep.failed", res.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *RetryProcessor) sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeouts.Storage)
	records, err := p.store.FetchPending(fetchCtx, p.cfg.BatchSize)
	cancel()
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("fetch pending deliveries: %w", err)
	}
	metrics.SweepBatchSize.Set(float64(len(records)))
	if len(records) == 0 {
		p.log.Debug("No pending deliveries to retry")
		metrics.SweepRuns.WithLabelValues("ok").Inc()
		return res, nil
	}
	p.log.Infow("Retrying failed deliveries", "count", len(records), "maxRetries", p.cfg.MaxRetries, "concurrency", p.cfg.Concurrency)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.cfg.Concurrency)
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			o := p.replay(ctx, rec)
			mu.Lock()
			res.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.log.Warnw("Retry sweep aborted", "processed", res.Processed, "picked", len(records), "error", err)
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("retry sweep aborted: %w", err)
	}
	p.log.Infow("Retry sweep finished", "processed", res.Processed, "sent", res.Sent,
		"retrying", res.Retrying, "failed", res.Failed, "escalated", res.Escalated, "errors", res.Errors)
	metrics.SweepRuns.WithLabelValues("ok").Inc()
	return res, nil
}

func (p *RetryProcessor) replay(ctx context.Context, rec Record) replayOutcome {
	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeouts.Send)
	sendErr := sendChannel(sendCtx, p.sender, rec.Channel, rec.Payload)
	cancel()

	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeouts.Storage)
	defer cancel()

	if sendErr == nil {
		if err := p.store.MarkSent(bookCtx, rec.ID); err != nil {
			p.log.Errorw("Failed to mark delivery as sent", "id", rec.ID, "channel", rec.Channel, "error", err)
			metrics.RetryOutcomes.WithLabelValues(string(rec.Channel), "error").Inc()
			return replayOutcome{err: err}
		}
		p.log.Infow("Retried delivery sent", "id", rec.ID, "channel", rec.Channel, "attempt", rec.RetryCount+1)
		metrics.RetryOutcomes.WithLabelValues(string(rec.Channel), string(StatusSent)).Inc()
		metrics.DeliveriesSent.WithLabelValues(string(rec.Channel), "retry").Inc()
		return replayOutcome{status: StatusSent}
	}

	out, err := p.store.MarkFailed(bookCtx, rec.ID, sendErr.Error(), p.cfg.MaxRetries)
	if err != nil {
		p.log.Errorw("Failed to record retry failure", "id", rec.ID, "channel", rec.Channel, "sendError", sendErr, "error", err)
		metrics.RetryOutcomes.WithLabelValues(string(rec.Channel), "error").Inc()
		return replayOutcome{err: err}
	}
	metrics.RetryOutcomes.WithLabelValues(string(rec.Channel), string(out.Status)).Inc()

	if out.Status != StatusFailed {
		p.log.Warnw("Retried delivery failed, will retry again", "id", rec.ID, "channel", rec.Channel,
			"retryCount", out.RetryCount, "maxRetries", p.cfg.MaxRetries, "error", sendErr)
		return replayOutcome{status: out.Status}
	}

	p.log.Errorw("Delivery failed permanently", "id", rec.ID, "channel", rec.Channel, "retryCount", out.RetryCount, "error", sendErr)
	return replayOutcome{status: StatusFailed, escalated: p.escalate(ctx, rec, out, sendErr)}
}

// AlertSubject and AlertBody format the escalation mail for a record that
// exhausted its retries.
func AlertSubject(channel Channel) string {
	return fmt.Sprintf("Email retry failed: %s", channel)
}

func AlertBody(id string, retryCount int, lastErr string) string {
	return fmt.Sprintf("Email with ID %s failed after %d attempts. Last error: %s", id, retryCount, lastErr)
}

// escalate reports whether the alert went out. Alert failures are only logged.
func (p *RetryProcessor) escalate(ctx context.Context, rec Record, out Outcome, sendErr error) bool {
	if p.cfg.AdminAddress == "" {
		p.log.Warnw("No admin address configured, escalation alert skipped", "id", rec.ID, "channel", rec.Channel)
		metrics.Escalations.WithLabelValues("skipped").Inc()
		return false
	}
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeouts.Send)
	defer cancel()
	err := p.sender.SendAlert(alertCtx, p.cfg.AdminAddress, AlertSubject(rec.Channel), AlertBody(rec.ID, out.RetryCount, sendErr.Error()))
	if err != nil {
		p.log.Errorw("Failed to send escalation alert", "id", rec.ID, "channel", rec.Channel, "error", err)
		metrics.Escalations.WithLabelValues("failed").Inc()
		return false
	}
	metrics.Escalations.WithLabelValues("sent").Inc()
	return true
}
