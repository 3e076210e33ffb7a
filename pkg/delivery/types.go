// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel identifies which of the two outbound mails a record belongs to.
type Channel string

const (
	// ChannelConfirmation is the mail sent back to the person who submitted the form.
	ChannelConfirmation Channel = "confirmation"
	// ChannelNotification is the internal mail sent to the operator address.
	ChannelNotification Channel = "notification"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	return c == ChannelConfirmation || c == ChannelNotification
}

// Status is the lifecycle state of a failed delivery record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// ParseStatus converts a query/flag value into a Status. The empty string
// maps to the empty Status which store listings treat as "any".
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StatusPending, StatusSent, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown delivery status %q", s)
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Redacted replaces personal values in logged payloads.
const Redacted = "[REDACTED]"

// Field is a single labelled form value as it appears in mails.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Payload is everything needed to rebuild both mails of a submission.
type Payload struct {
	Data     []Field `json:"data"`
	FormType string  `json:"formType"`
	Locale   string  `json:"locale"`
}

// Value returns the value of the first field with the given key.
func (p Payload) Value(key string) string {
	for _, f := range p.Data {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// SubmitterEmail is the confirmation recipient.
func (p Payload) SubmitterEmail() string {
	return strings.TrimSpace(p.Value("email"))
}

var sensitiveKeys = map[string]struct{}{
	"name":      {},
	"firstname": {},
	"lastname":  {},
	"fullname":  {},
	"email":     {},
	"phone":     {},
	"telephone": {},
	"message":   {},
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	_, ok := sensitiveKeys[k]
	return ok
}

// Masked returns a copy of the payload safe for logging. The receiver is
// left untouched.
func (p Payload) Masked() Payload {
	out := Payload{FormType: p.FormType, Locale: p.Locale, Data: make([]Field, len(p.Data))}
	for i, f := range p.Data {
		out.Data[i] = f
		if isSensitive(f.Key) && f.Value != "" {
			out.Data[i].Value = Redacted
		}
	}
	return out
}

// LogFields flattens the payload into key/value pairs for structured logging.
func (p Payload) LogFields() map[string]string {
	m := make(map[string]string, len(p.Data))
	for _, f := range p.Data {
		m[f.Key] = f.Value
	}
	return m
}

// Record is one durable failed delivery.
type Record struct {
	ID         string    `json:"id"`
	Channel    Channel   `json:"channel"`
	Payload    Payload   `json:"payload"`
	LastError  string    `json:"lastError"`
	RetryCount int       `json:"retryCount"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Outcome is the state of a record right after MarkFailed.
type Outcome struct {
	RetryCount int
	Status     Status
}

var (
	ErrNotFound   = errors.New("delivery record not found")
	ErrNotPending = errors.New("delivery record is not pending")

	// ErrUnknownChannel rejects records that no sender could ever replay.
	ErrUnknownChannel = errors.New("unknown delivery channel")

	// ErrSweepInProgress is returned when a sweep is requested while another
	// one on the same processor has not finished.
	ErrSweepInProgress = errors.New("retry sweep already in progress")
)

// Store persists failed deliveries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Enqueue stores a new pending record with retryCount 0.
	Enqueue(ctx context.Context, channel Channel, payload Payload, cause error) (Record, error)
	// FetchPending returns up to limit pending records, oldest first.
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	// MarkSent moves a pending record to sent.
	MarkSent(ctx context.Context, id string) error
	// MarkFailed increments the retry count and stores lastErr in one step.
	// The record becomes failed once the new count reaches maxRetries.
	MarkFailed(ctx context.Context, id, lastErr string, maxRetries int) (Outcome, error)
	// List returns records newest first. An empty status matches all.
	List(ctx context.Context, status Status, limit int) ([]Record, error)
}

// Sender builds and sends the mails of a submission.
type Sender interface {
	SendConfirmation(ctx context.Context, payload Payload) error
	SendNotification(ctx context.Context, payload Payload) error
	SendAlert(ctx context.Context, to, subject, body string) error
}

// Timeouts bound every transport and storage call.
type Timeouts struct {
	Send    time.Duration
	Storage time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{Send: 30 * time.Second, Storage: 5 * time.Second}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Send <= 0 {
		t.Send = d.Send
	}
	if t.Storage <= 0 {
		t.Storage = d.Storage
	}
	return t
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
