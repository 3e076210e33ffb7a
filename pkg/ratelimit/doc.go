// Package ratelimit implements a fixed-window admission limiter keyed by an
// opaque caller identity. Counters live behind CounterStore so the same
// limiter runs on sqlite, Redis or in memory. Every rejection is appended to
// an audit trail of duplicate attempts.
package ratelimit
