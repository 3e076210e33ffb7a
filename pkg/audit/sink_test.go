package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical} {
		require.NoError(t, sink.Write(context.Background(), &Event{ID: "e", Type: EventSweepCompleted, Severity: sev}))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "audit", entries[0].LoggerName)
}

func TestLogSinkFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Write(context.Background(), &Event{
		ID:           "e",
		Type:         EventSubmissionAccepted,
		SubmissionID: "sub-1",
		FormType:     "contact",
		Details:      map[string]any{"queuedDeliveries": 1},
	}))

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "sub-1", fields["submission_id"])
	assert.Equal(t, "contact", fields["form_type"])
	assert.NotContains(t, fields, "identity")
	assert.Contains(t, fields, "details")
}
