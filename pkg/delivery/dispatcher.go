// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/metrics"
)

// ErrNoRecipient is returned by senders when a channel has nobody to send to.
var ErrNoRecipient = errors.New("no recipient address")

// ChannelResult describes what happened to one channel of a dispatch.
type ChannelResult struct {
	Channel Channel
	// Sent is true when the mail went out on the first attempt.
	Sent bool
	// Skipped is true when the channel had no recipient and nothing was sent or queued.
	Skipped bool
	// RecordID is set when the failed send was stored for retry.
	RecordID string
	// Err is the send error, if any.
	Err error
	// QueueErr is set when the failure could not be stored either.
	QueueErr error
}

// Queued reports whether the failed channel is waiting in the retry queue.
func (r ChannelResult) Queued() bool {
	return r.RecordID != ""
}

// Report holds the outcome of both channels.
type Report struct {
	Confirmation ChannelResult
	Notification ChannelResult
}

// Failed returns how many channels did not go out immediately.
func (r Report) Failed() int {
	n := 0
	for _, c := range []ChannelResult{r.Confirmation, r.Notification} {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Dispatcher sends the confirmation and notification mails of a submission
// concurrently. A failed channel is stored for retry and never reported to
// the caller as an error.
type Dispatcher struct {
	sender   Sender
	store    Store
	timeouts Timeouts
	log      *zap.SugaredLogger
}

func NewDispatcher(sender Sender, store Store, timeouts Timeouts, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{sender: sender, store: store, timeouts: timeouts.withDefaults(), log: log}
}

// Dispatch blocks until both channels are either sent, queued or skipped.
// A payload without an email field has no confirmation recipient: that
// channel is reported as Skipped and nothing is queued for it, so a
// submission where every send fails yields one queued record instead of two.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) Report {
	masked := payload.Masked()
	d.log.Infow("Dispatching inquiry mails", "formType", payload.FormType, "locale", payload.Locale, "payload", masked.LogFields())

	var (
		wg     sync.WaitGroup
		report Report
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		report.Confirmation = d.deliver(ctx, ChannelConfirmation, payload, masked)
	}()
	go func() {
		defer wg.Done()
		report.Notification = d.deliver(ctx, ChannelNotification, payload, masked)
	}()
	wg.Wait()

	d.log.Debugw("Dispatch finished", "formType", payload.FormType,
		"confirmationSent", report.Confirmation.Sent, "notificationSent", report.Notification.Sent,
		"failedChannels", report.Failed())
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, channel Channel, payload, masked Payload) ChannelResult {
	res := ChannelResult{Channel: channel}

	if channel == ChannelConfirmation && payload.SubmitterEmail() == "" {
		d.log.Warnw("Submission has no email address, skipping confirmation", "formType", payload.FormType)
		metrics.DeliveriesSkipped.WithLabelValues(string(channel)).Inc()
		res.Skipped = true
		return res
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeouts.Send)
	err := sendChannel(sendCtx, d.sender, channel, payload)
	cancel()
	if err == nil {
		metrics.DeliveriesSent.WithLabelValues(string(channel), "dispatch").Inc()
		res.Sent = true
		return res
	}
	res.Err = err

	// The send already happened, so the bookkeeping must not inherit the
	// caller's cancellation.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeouts.Storage)
	defer cancel()
	rec, qerr := d.store.Enqueue(storeCtx, channel, payload, err)
	if qerr != nil {
		d.log.Errorw("Failed to store failed delivery for retry",
			"channel", channel, "error", err, "queueError", qerr, "payload", masked.LogFields())
		metrics.DeliveriesLost.WithLabelValues(string(channel)).Inc()
		res.QueueErr = qerr
		return res
	}
	metrics.DeliveriesQueued.WithLabelValues(string(channel)).Inc()
	d.log.Warnw("Mail delivery failed, queued for retry",
		"channel", channel, "id", rec.ID, "error", err, "payload", masked.LogFields())
	res.RecordID = rec.ID
	return res
}

// sendChannel routes a payload to the sender method of its channel. A
// panicking sender is reported as a failed send.
func sendChannel(ctx context.Context, sender Sender, channel Channel, payload Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked on %s channel: %v", channel, r)
		}
	}()
	switch channel {
	case ChannelConfirmation:
		return sender.SendConfirmation(ctx, payload)
	case ChannelNotification:
		return sender.SendNotification(ctx, payload)
	default:
		return fmt.Errorf("unknown delivery channel %q", channel)
	}
}
