// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/metrics"
)

// ManagerConfig configures the audit Manager.
type ManagerConfig struct {
	// QueueSize is the size of the async event queue.
	// Default: 1000
	QueueSize int

	// WorkerCount is the number of goroutines writing to the sink.
	// Default: 1
	WorkerCount int

	// WriteTimeout bounds a single sink write.
	// Default: 5s
	WriteTimeout time.Duration
}

// DefaultManagerConfig returns the default queue settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		QueueSize:    1000,
		WorkerCount:  1,
		WriteTimeout: 5 * time.Second,
	}
}

// Manager queues events and writes them to its sink in the background.
// Emit never blocks: when the queue is full the event is dropped and counted.
type Manager struct {
	sink   Sink
	queue  chan *Event
	logger *zap.Logger
	config ManagerConfig
	now    func() time.Time

	// mu guards closing the queue against concurrent Emit calls.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	processed atomic.Int64
	dropped   atomic.Int64
}

// ManagerStats is a snapshot of the manager's counters.
type ManagerStats struct {
	Queued    int   `json:"queued"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
}

// NewManager starts the workers and returns the manager. Close stops them.
func NewManager(sink Sink, cfg ManagerConfig, logger *zap.Logger) *Manager {
	def := DefaultManagerConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	m := &Manager{
		sink:   sink,
		queue:  make(chan *Event, cfg.QueueSize),
		logger: logger.Named("audit-manager"),
		config: cfg,
		now:    time.Now,
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.processQueue(i)
	}

	logger.Info("audit manager started",
		zap.String("sink", sink.Name()),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount))
	return m
}

// Emit fills in ID, timestamp and severity and queues the event.
func (m *Manager) Emit(_ context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- event:
	default:
		m.dropped.Add(1)
		metrics.AuditEventsDropped.Inc()
		m.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
}

func (m *Manager) processQueue(workerID int) {
	defer m.wg.Done()

	for event := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		if err := m.sink.Write(ctx, event); err != nil {
			m.logger.Error("failed to write audit event",
				zap.Int("worker", workerID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			metrics.AuditSinkErrors.WithLabelValues(m.sink.Name()).Inc()
		} else {
			m.processed.Add(1)
			metrics.AuditEventsProcessed.WithLabelValues(string(event.Type)).Inc()
		}
		cancel()
	}
}

// Close drains the queue, stops the workers and closes the sink.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("audit manager stopped",
		zap.Int64("processed", m.processed.Load()),
		zap.Int64("dropped", m.dropped.Load()))
	return m.sink.Close()
}

// Stats returns current counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Queued:    len(m.queue),
		Processed: m.processed.Load(),
		Dropped:   m.dropped.Load(),
	}
}

func (m *Manager) SubmissionAccepted(ctx context.Context, submissionID, formType, identity string, queuedDeliveries int) {
	m.Emit(ctx, &Event{
		Type:         EventSubmissionAccepted,
		SubmissionID: submissionID,
		FormType:     formType,
		Identity:     identity,
		Details:      map[string]any{"queuedDeliveries": queuedDeliveries},
	})
}

func (m *Manager) SubmissionRateLimited(ctx context.Context, formType, identity string, count int) {
	m.Emit(ctx, &Event{
		Type:     EventSubmissionRateLimited,
		FormType: formType,
		Identity: identity,
		Details:  map[string]any{"count": count},
	})
}

func (m *Manager) SubmissionFailed(ctx context.Context, formType, identity, reason string) {
	m.Emit(ctx, &Event{
		Type:     EventSubmissionFailed,
		FormType: formType,
		Identity: identity,
		Details:  map[string]any{"reason": reason},
	})
}

// SweepCompleted records one retry sweep; details are the sweep counters.
func (m *Manager) SweepCompleted(ctx context.Context, details map[string]any) {
	m.Emit(ctx, &Event{Type: EventSweepCompleted, Details: details})
}

// RetentionPurged records one purge run; details are the deleted row counts.
func (m *Manager) RetentionPurged(ctx context.Context, details map[string]any) {
	m.Emit(ctx, &Event{Type: EventRetentionPurged, Details: details})
}
