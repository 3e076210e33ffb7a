// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package inquiry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/metrics"
	"github.com/telekom/inquiry-pipeline/pkg/ratelimit"
)

var tracer = otel.Tracer("github.com/telekom/inquiry-pipeline/pkg/inquiry")

var (
	ErrRateLimited        = errors.New("too many submissions")
	ErrPersistence        = errors.New("failed to store submission")
	ErrInvalidSubmission  = errors.New("invalid submission")
	ErrSubmissionNotFound = errors.New("submission not found")
)

// DefaultStorageTimeout bounds the submission write when none is configured.
const DefaultStorageTimeout = 5 * time.Second

const (
	MessageAccepted    = "Thank you for your inquiry. We will get back to you shortly."
	MessageRateLimited = "Too many requests. Please try again later."
	MessageFailed      = "Your inquiry could not be submitted. Please try again later."
)

type Limiter interface {
	Allow(ctx context.Context, identity string) (ratelimit.Decision, error)
}

type SubmissionStore interface {
	Save(ctx context.Context, rec SubmissionRecord) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, payload delivery.Payload) delivery.Report
}

type Sweeper interface {
	Sweep(ctx context.Context) (delivery.SweepResult, error)
}

// Auditor receives submission and sweep outcomes. Implementations must not
// block; identities passed in are already hashed.
type Auditor interface {
	SubmissionAccepted(ctx context.Context, submissionID, formType, identity string, queuedDeliveries int)
	SubmissionRateLimited(ctx context.Context, formType, identity string, count int)
	SubmissionFailed(ctx context.Context, formType, identity, reason string)
	SweepCompleted(ctx context.Context, details map[string]any)
}

type nopAuditor struct{}

func (nopAuditor) SubmissionAccepted(context.Context, string, string, string, int) {}
func (nopAuditor) SubmissionRateLimited(context.Context, string, string, int)      {}
func (nopAuditor) SubmissionFailed(context.Context, string, string, string)        {}
func (nopAuditor) SweepCompleted(context.Context, map[string]any)                  {}

// Submission is one validated form post.
type Submission struct {
	// Identity is the hashed caller identity used for admission control.
	Identity string

	SessionID string

	// Consent is the analytics consent flag. Without it the session id is dropped.
	Consent bool

	Payload delivery.Payload
}

// SubmissionRecord is the persisted form of an accepted submission.
type SubmissionRecord struct {
	ID        string           `json:"id"`
	FormType  string           `json:"formType"`
	Locale    string           `json:"locale"`
	Payload   delivery.Payload `json:"payload"`
	Identity  string           `json:"identity"`
	SessionID string           `json:"sessionId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Result is what the submitter gets to see.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`

	// RetryAfter is set on rejected submissions.
	RetryAfter time.Duration `json:"-"`

	// Report is set on accepted submissions.
	Report *delivery.Report `json:"-"`
}

type Service struct {
	limiter    Limiter
	store      SubmissionStore
	dispatcher Dispatcher
	sweeper    Sweeper
	auditor    Auditor
	log        *zap.SugaredLogger
	now        func() time.Time

	storageTimeout time.Duration
}

func NewService(limiter Limiter, store SubmissionStore, dispatcher Dispatcher, sweeper Sweeper, log *zap.SugaredLogger) *Service {
	return &Service{
		limiter:    limiter,
		store:      store,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		auditor:    nopAuditor{},
		log:        log,
		now:        time.Now,

		storageTimeout: DefaultStorageTimeout,
	}
}

// WithStorageTimeout bounds each submission write. Non-positive values keep the default.
func (s *Service) WithStorageTimeout(d time.Duration) *Service {
	if d > 0 {
		s.storageTimeout = d
	}
	return s
}

// WithAuditor sends submission and sweep outcomes to a.
func (s *Service) WithAuditor(a Auditor) *Service {
	if a != nil {
		s.auditor = a
	}
	return s
}

// WithClock replaces the time source used for record timestamps and retry hints.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func validate(sub Submission) error {
	if strings.TrimSpace(sub.Identity) == "" {
		return fmt.Errorf("%w: missing caller identity", ErrInvalidSubmission)
	}
	if len(sub.Payload.Data) == 0 {
		return fmt.Errorf("%w: no form data", ErrInvalidSubmission)
	}
	for _, f := range sub.Payload.Data {
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("%w: field without key", ErrInvalidSubmission)
		}
	}
	return nil
}

// Submit runs admission control, stores the submission and dispatches both
// mails. Delivery failures are queued for retry and never fail the
// submission; only a rejected admission or a failed write does.
// A limiter error admits the submission.
func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	ctx, span := tracer.Start(ctx, "inquiry.Submit", trace.WithAttributes(
		attribute.String("inquiry.form_type", sub.Payload.FormType),
		attribute.String("inquiry.locale", sub.Payload.Locale),
	))
	defer span.End()

	res, err := s.submit(ctx, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if res.ID != "" {
		span.SetAttributes(attribute.String("inquiry.id", res.ID))
	}
	return res, err
}

func (s *Service) submit(ctx context.Context, sub Submission) (Result, error) {
	formType := sub.Payload.FormType
	if err := validate(sub); err != nil {
		metrics.Submissions.WithLabelValues(formType, "invalid").Inc()
		return Result{Success: false, Message: err.Error()}, err
	}
	log := s.log.With("formType", formType, "locale", sub.Payload.Locale)

	decision, err := s.limiter.Allow(ctx, sub.Identity)
	switch {
	case err != nil:
		metrics.RateLimitErrors.Inc()
		log.Warnw("Rate limiter unavailable, admitting submission", "error", err)
	case !decision.Allowed:
		metrics.Submissions.WithLabelValues(formType, "rate_limited").Inc()
		log.Infow("Submission rejected by rate limiter", "count", decision.Count, "resetAt", decision.ResetAt)
		s.auditor.SubmissionRateLimited(ctx, formType, sub.Identity, decision.Count)
		return Result{
			Success:    false,
			Message:    MessageRateLimited,
			RetryAfter: decision.RetryAfter(s.now()),
		}, ErrRateLimited
	}

	rec := SubmissionRecord{
		ID:        uuid.NewString(),
		FormType:  formType,
		Locale:    sub.Payload.Locale,
		Payload:   sub.Payload,
		Identity:  sub.Identity,
		CreatedAt: s.now().UTC(),
	}
	if sub.Consent {
		rec.SessionID = sub.SessionID
	}
	if err := s.save(ctx, rec); err != nil {
		metrics.Submissions.WithLabelValues(formType, "error").Inc()
		log.Errorw("Failed to store submission", "error", err, "payload", sub.Payload.Masked().LogFields())
		s.auditor.SubmissionFailed(ctx, formType, sub.Identity, err.Error())
		return Result{Success: false, Message: MessageFailed}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	report := s.dispatcher.Dispatch(ctx, sub.Payload)
	if n := report.Failed(); n > 0 {
		log.Warnw("Submission stored with undelivered mails", "id", rec.ID, "failedChannels", n)
	} else {
		log.Infow("Submission accepted", "id", rec.ID)
	}
	metrics.Submissions.WithLabelValues(formType, "accepted").Inc()
	s.auditor.SubmissionAccepted(ctx, rec.ID, formType, sub.Identity, report.Failed())
	return Result{Success: true, Message: MessageAccepted, ID: rec.ID, Report: &report}, nil
}

func (s *Service) save(ctx context.Context, rec SubmissionRecord) error {
	saveCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.store.Save(saveCtx, rec)
}

// ProcessFailedDeliveries runs one retry sweep over the failed-delivery queue.
func (s *Service) ProcessFailedDeliveries(ctx context.Context) (delivery.SweepResult, error) {
	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return res, err
	}
	if res.Processed > 0 {
		s.auditor.SweepCompleted(ctx, map[string]any{
			"processed": res.Processed,
			"sent":      res.Sent,
			"retrying":  res.Retrying,
			"failed":    res.Failed,
			"escalated": res.Escalated,
			"errors":    res.Errors,
		})
	}
	return res, nil
}
