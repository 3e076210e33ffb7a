package inquiry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditCall struct {
	kind     string
	id       string
	identity string
	count    int
	details  map[string]any
}

type recordingAuditor struct {
	mu    sync.Mutex
	calls []auditCall
}

func (r *recordingAuditor) add(c auditCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingAuditor) SubmissionAccepted(_ context.Context, id, _, identity string, queued int) {
	r.add(auditCall{kind: "accepted", id: id, identity: identity, count: queued})
}

func (r *recordingAuditor) SubmissionRateLimited(_ context.Context, _, identity string, count int) {
	r.add(auditCall{kind: "rate_limited", identity: identity, count: count})
}

func (r *recordingAuditor) SubmissionFailed(_ context.Context, _, identity, _ string) {
	r.add(auditCall{kind: "failed", identity: identity})
}

func (r *recordingAuditor) SweepCompleted(_ context.Context, details map[string]any) {
	r.add(auditCall{kind: "sweep", details: details})
}

func TestSubmitIsAudited(t *testing.T) {
	f := newFixture(t, 1)
	auditor := &recordingAuditor{}
	f.service.WithAuditor(auditor)
	sub := sampleSubmission()

	accepted, err := f.service.Submit(context.Background(), sub)
	require.NoError(t, err)
	_, err = f.service.Submit(context.Background(), sub)
	require.ErrorIs(t, err, ErrRateLimited)

	require.Len(t, auditor.calls, 2)
	assert.Equal(t, auditCall{kind: "accepted", id: accepted.ID, identity: sub.Identity}, auditor.calls[0])
	assert.Equal(t, "rate_limited", auditor.calls[1].kind)
	assert.Equal(t, sub.Identity, auditor.calls[1].identity)
}

func TestSubmitPersistenceFailureIsAudited(t *testing.T) {
	f := newFixture(t, 100)
	auditor := &recordingAuditor{}
	f.service.WithAuditor(auditor)
	f.submissions.err = errors.New("disk full")

	_, err := f.service.Submit(context.Background(), sampleSubmission())
	require.ErrorIs(t, err, ErrPersistence)

	require.Len(t, auditor.calls, 1)
	assert.Equal(t, "failed", auditor.calls[0].kind)
}

func TestSweepIsAuditedOnlyWhenWorkWasDone(t *testing.T) {
	f := newFixture(t, 100)
	auditor := &recordingAuditor{}
	f.service.WithAuditor(auditor)

	_, err := f.service.ProcessFailedDeliveries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auditor.calls)

	f.sender.failConfirm = true
	_, err = f.service.Submit(context.Background(), sampleSubmission())
	require.NoError(t, err)
	f.sender.failConfirm = false

	_, err = f.service.ProcessFailedDeliveries(context.Background())
	require.NoError(t, err)

	require.Len(t, auditor.calls, 2)
	assert.Equal(t, 1, auditor.calls[0].count, "one delivery queued at submit time")
	assert.Equal(t, "sweep", auditor.calls[1].kind)
	assert.Equal(t, 1, auditor.calls[1].details["sent"])
}

func TestWithAuditorIgnoresNil(t *testing.T) {
	f := newFixture(t, 100)
	f.service.WithAuditor(nil)

	_, err := f.service.Submit(context.Background(), sampleSubmission())
	require.NoError(t, err)
}
