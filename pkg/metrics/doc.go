// Package metrics defines Prometheus metrics for the inquiry pipeline,
// covering submissions, rate-limit decisions, mail delivery, the
// failed-delivery queue and the retry sweep.
package metrics
