package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submissions by form type and result (accepted, rate_limited, persistence_error).
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_submissions_total",
		Help: "Total number of inquiry submissions grouped by form type and result",
	}, []string{"form_type", "result"})
	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_ratelimit_decisions_total",
		Help: "Total number of rate limiter decisions (allowed/rejected)",
	}, []string{"decision"})
	RateLimitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inquiry_ratelimit_errors_total",
		Help: "Total number of rate limiter storage errors (requests admitted anyway)",
	})
	DuplicateAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inquiry_duplicate_attempts_total",
		Help: "Total number of duplicate attempts recorded for rejected callers",
	})

	// Mail metrics per SMTP host
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_mail_send_success_total",
		Help: "Total number of mails sent successfully",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_mail_send_failure_total",
		Help: "Total number of mails that failed to send",
	}, []string{"host"})

	// Delivery metrics. source is "dispatch" or "retry".
	DeliveriesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_deliveries_sent_total",
		Help: "Total number of channel deliveries that succeeded",
	}, []string{"channel", "source"})
	DeliveriesQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_deliveries_queued_total",
		Help: "Total number of failed channel deliveries stored for retry",
	}, []string{"channel"})
	DeliveriesLost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_deliveries_lost_total",
		Help: "Total number of failed deliveries that could not be stored for retry",
	}, []string{"channel"})
	DeliveriesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_deliveries_skipped_total",
		Help: "Total number of channel deliveries skipped because no recipient was known",
	}, []string{"channel"})
	RetryOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_retry_outcomes_total",
		Help: "Outcomes of replayed deliveries (sent, pending, failed, error)",
	}, []string{"channel", "outcome"})
	Escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_escalations_total",
		Help: "Escalation alerts for permanently failed deliveries by result (sent/failed/skipped)",
	}, []string{"result"})
	SweepBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inquiry_retry_sweep_batch_size",
		Help: "Number of pending records picked up by the last retry sweep",
	})
	SweepRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_retry_sweeps_total",
		Help: "Total number of retry sweeps by result (ok/error/skipped)",
	}, []string{"result"})
	RecordsPurged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_records_purged_total",
		Help: "Total number of rows removed by the retention purge",
	}, []string{"table"})

	// HTTP API
	APIEndpointRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_api_requests_total",
		Help: "Total number of API requests by endpoint",
	}, []string{"endpoint"})
	APIEndpointErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_api_errors_total",
		Help: "Total number of API responses with status >= 400 by endpoint and status",
	}, []string{"endpoint", "status"})
	APIEndpointDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inquiry_api_request_duration_seconds",
		Help:    "API request latency by endpoint",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Audit
	AuditEventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_audit_events_processed_total",
		Help: "Audit events written to the sink by event type",
	}, []string{"type"})
	AuditEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inquiry_audit_events_dropped_total",
		Help: "Audit events dropped because the queue was full",
	})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_audit_sink_errors_total",
		Help: "Failed audit sink writes by sink",
	}, []string{"sink"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inquiry_audit_sink_write_seconds",
		Help:    "Audit sink write latency by sink",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(RateLimitDecisions)
	prometheus.MustRegister(RateLimitErrors)
	prometheus.MustRegister(DuplicateAttempts)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(DeliveriesSent)
	prometheus.MustRegister(DeliveriesQueued)
	prometheus.MustRegister(DeliveriesLost)
	prometheus.MustRegister(DeliveriesSkipped)
	prometheus.MustRegister(RetryOutcomes)
	prometheus.MustRegister(Escalations)
	prometheus.MustRegister(SweepBatchSize)
	prometheus.MustRegister(SweepRuns)
	prometheus.MustRegister(RecordsPurged)
	prometheus.MustRegister(APIEndpointRequests)
	prometheus.MustRegister(APIEndpointErrors)
	prometheus.MustRegister(APIEndpointDuration)
	prometheus.MustRegister(AuditEventsProcessed)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkLatency)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
