// Package storage is the sqlite persistence layer of the inquiry pipeline.
// It holds rate limit counters, the duplicate-attempt audit trail, failed
// deliveries and stored submissions, and purges them by retention policy.
package storage
