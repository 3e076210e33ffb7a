// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"errors"
	"sync"
)

type sentAlert struct {
	to, subject, body string
}

// fakeSender records every call and fails according to its error fields.
type fakeSender struct {
	mu sync.Mutex

	confirmErr error
	notifyErr  error
	alertErr   error
	panicOn    Channel

	confirmations []Payload
	notifications []Payload
	alerts        []sentAlert
}

func (f *fakeSender) SendConfirmation(ctx context.Context, p Payload) error {
	if f.panicOn == ChannelConfirmation {
		panic("boom")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmations = append(f.confirmations, p)
	return nil
}

func (f *fakeSender) SendNotification(ctx context.Context, p Payload) error {
	if f.panicOn == ChannelNotification {
		panic("boom")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications = append(f.notifications, p)
	return nil
}

func (f *fakeSender) SendAlert(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertErr != nil {
		return f.alertErr
	}
	f.alerts = append(f.alerts, sentAlert{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeSender) counts() (confirmations, notifications, alerts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmations), len(f.notifications), len(f.alerts)
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*MemoryStore
	enqueueErr error
	fetchErr   error
	markErr    error
}

func (s *failingStore) Enqueue(ctx context.Context, ch Channel, p Payload, cause error) (Record, error) {
	if s.enqueueErr != nil {
		return Record{}, s.enqueueErr
	}
	return s.MemoryStore.Enqueue(ctx, ch, p, cause)
}

func (s *failingStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.MemoryStore.FetchPending(ctx, limit)
}

func (s *failingStore) MarkSent(ctx context.Context, id string) error {
	if s.markErr != nil {
		return s.markErr
	}
	return s.MemoryStore.MarkSent(ctx, id)
}

func (s *failingStore) MarkFailed(ctx context.Context, id, lastErr string, maxRetries int) (Outcome, error) {
	if s.markErr != nil {
		return Outcome{}, s.markErr
	}
	return s.MemoryStore.MarkFailed(ctx, id, lastErr, maxRetries)
}

var errSMTP = errors.New("smtp: 421 service not available")

func samplePayload() Payload {
	return Payload{
		FormType: "contact",
		Locale:   "en",
		Data: []Field{
			{Key: "name", Label: "Name", Value: "Jane Doe"},
			{Key: "email", Label: "Email", Value: "jane@example.com"},
			{Key: "phone", Label: "Phone", Value: "+49 123 456"},
			{Key: "company", Label: "Company", Value: "Acme"},
			{Key: "message", Label: "Message", Value: "Please call me back"},
		},
	}
}
