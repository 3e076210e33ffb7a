package inquiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/ratelimit"
	"github.com/telekom/inquiry-pipeline/pkg/system"
)

var errSMTP = errors.New("smtp: 421 service not available")

// stubSender fails the channels it is told to fail.
type stubSender struct {
	mu            sync.Mutex
	failConfirm   bool
	failNotify    bool
	confirmations int
	notifications int
}

func (s *stubSender) SendConfirmation(_ context.Context, _ delivery.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failConfirm {
		return errSMTP
	}
	s.confirmations++
	return nil
}

func (s *stubSender) SendNotification(_ context.Context, _ delivery.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNotify {
		return errSMTP
	}
	s.notifications++
	return nil
}

func (s *stubSender) SendAlert(context.Context, string, string, string) error {
	return nil
}

// memorySubmissions keeps saved records in a slice.
type memorySubmissions struct {
	mu      sync.Mutex
	err     error
	records []SubmissionRecord
}

func (m *memorySubmissions) Save(_ context.Context, rec SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySubmissions) saved() []SubmissionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubmissionRecord(nil), m.records...)
}

// stalledSubmissions blocks every write until the caller gives up.
type stalledSubmissions struct{}

func (stalledSubmissions) Save(ctx context.Context, _ SubmissionRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("database is locked")
}

type fixture struct {
	service     *Service
	sender      *stubSender
	submissions *memorySubmissions
	deliveries  *delivery.MemoryStore
	limiter     *ratelimit.FixedWindow
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	log := system.NewTestLogger()
	counters := ratelimit.NewMemoryStore(0, time.Hour)
	t.Cleanup(counters.Stop)

	f := &fixture{
		sender:      &stubSender{},
		submissions: &memorySubmissions{},
		deliveries:  delivery.NewMemoryStore(),
		limiter:     ratelimit.New(counters, ratelimit.Config{Limit: limit, Window: time.Minute}, log),
	}
	dispatcher := delivery.NewDispatcher(f.sender, f.deliveries, delivery.Timeouts{}, log)
	processor := delivery.NewRetryProcessor(f.deliveries, f.sender, delivery.RetryConfig{AdminAddress: "ops@example.com"}, log)
	f.service = NewService(f.limiter, f.submissions, dispatcher, processor, log)
	return f
}

func samplePayload() delivery.Payload {
	return delivery.Payload{
		FormType: "contact",
		Locale:   "de",
		Data: []delivery.Field{
			{Key: "name", Label: "Name", Value: "Max Mustermann"},
			{Key: "email", Label: "E-Mail", Value: "max@example.com"},
			{Key: "message", Label: "Nachricht", Value: "Bitte um Rückruf"},
		},
	}
}

func sampleSubmission() Submission {
	return Submission{Identity: HashIdentity("salt", "203.0.113.7"), SessionID: "sess-1", Payload: samplePayload()}
}
