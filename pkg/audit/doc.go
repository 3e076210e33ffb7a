// Package audit records what happened to inquiries (accepted, rejected by
// the rate limiter, swept, purged) and forwards the events to a log or
// Kafka sink without blocking the request path.
package audit
