// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"
)

// EventType identifies what an Event describes.
type EventType string

const (
	EventSubmissionAccepted    EventType = "submission.accepted"
	EventSubmissionRateLimited EventType = "submission.rate_limited"
	EventSubmissionFailed      EventType = "submission.failed"
	EventSweepCompleted        EventType = "sweep.completed"
	EventRetentionPurged       EventType = "retention.purged"
)

// Severity of an event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityForEventType returns the default severity for t.
func SeverityForEventType(t EventType) Severity {
	switch t {
	case EventSubmissionRateLimited:
		return SeverityWarning
	case EventSubmissionFailed:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Event is one audit record. Identity is the hashed client identity, never
// the raw IP; submitter data never enters an event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	SubmissionID string `json:"submissionId,omitempty"`
	FormType     string `json:"formType,omitempty"`
	Identity     string `json:"identity,omitempty"`

	// Details carries counters such as sweep or purge results.
	Details map[string]any `json:"details,omitempty"`
}
