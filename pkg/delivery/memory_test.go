// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedStore(start time.Time) (*MemoryStore, *time.Time) {
	now := start
	return NewMemoryStore().WithClock(func() time.Time { return now }), &now
}

func TestMemoryStoreEnqueue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec, err := s.Enqueue(ctx, ChannelConfirmation, samplePayload(), errSMTP)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)
	assert.Equal(t, errSMTP.Error(), rec.LastError)
	assert.Equal(t, "jane@example.com", rec.Payload.SubmitterEmail())
}

func TestMemoryStoreEnqueueRejectsUnknownChannel(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Enqueue(context.Background(), "sms", samplePayload(), errSMTP)

	require.ErrorIs(t, err, ErrUnknownChannel)
	assert.Empty(t, s.Len())
}

func TestMemoryStoreMarkFailedTransitions(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failures   int
		want       Outcome
	}{
		{name: "first failure stays pending", maxRetries: 3, failures: 1, want: Outcome{RetryCount: 1, Status: StatusPending}},
		{name: "second failure stays pending", maxRetries: 3, failures: 2, want: Outcome{RetryCount: 2, Status: StatusPending}},
		{name: "reaching cap fails", maxRetries: 3, failures: 3, want: Outcome{RetryCount: 3, Status: StatusFailed}},
		{name: "cap of one fails immediately", maxRetries: 1, failures: 1, want: Outcome{RetryCount: 1, Status: StatusFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewMemoryStore()
			rec, err := s.Enqueue(ctx, ChannelNotification, samplePayload(), errSMTP)
			require.NoError(t, err)

			var out Outcome
			for i := 0; i < tt.failures; i++ {
				out, err = s.MarkFailed(ctx, rec.ID, "attempt failed", tt.maxRetries)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, out)

			stored, ok := s.Get(rec.ID)
			require.True(t, ok)
			assert.Equal(t, tt.want.RetryCount, stored.RetryCount)
			assert.Equal(t, tt.want.Status, stored.Status)
			assert.Equal(t, "attempt failed", stored.LastError)
		})
	}
}

func TestMemoryStoreTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sent, _ := s.Enqueue(ctx, ChannelConfirmation, samplePayload(), errSMTP)
	require.NoError(t, s.MarkSent(ctx, sent.ID))
	assert.ErrorIs(t, s.MarkSent(ctx, sent.ID), ErrNotPending)
	_, err := s.MarkFailed(ctx, sent.ID, "x", 3)
	assert.ErrorIs(t, err, ErrNotPending)

	failed, _ := s.Enqueue(ctx, ChannelConfirmation, samplePayload(), errSMTP)
	_, err = s.MarkFailed(ctx, failed.ID, "x", 1)
	require.NoError(t, err)
	_, err = s.MarkFailed(ctx, failed.ID, "x", 1)
	assert.ErrorIs(t, err, ErrNotPending)
	stored, _ := s.Get(failed.ID)
	assert.Equal(t, 1, stored.RetryCount)

	assert.ErrorIs(t, s.MarkSent(ctx, "missing"), ErrNotFound)
}

func TestMemoryStoreFetchPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	s, now := newClockedStore(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))

	var ids []string
	for i := 0; i < 4; i++ {
		rec, err := s.Enqueue(ctx, ChannelNotification, samplePayload(), errSMTP)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
		*now = now.Add(time.Minute)
	}
	require.NoError(t, s.MarkSent(ctx, ids[1]))

	pending, err := s.FetchPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[2], pending[1].ID)
}

func TestMemoryStoreListAndPurge(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, now := newClockedStore(start)

	old, _ := s.Enqueue(ctx, ChannelConfirmation, samplePayload(), errSMTP)
	require.NoError(t, s.MarkSent(ctx, old.ID))
	oldPending, _ := s.Enqueue(ctx, ChannelConfirmation, samplePayload(), errSMTP)

	*now = start.Add(40 * 24 * time.Hour)
	recent, _ := s.Enqueue(ctx, ChannelNotification, samplePayload(), errSMTP)
	require.NoError(t, s.MarkSent(ctx, recent.ID))

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, recent.ID, all[0].ID, "newest first")

	sent, err := s.List(ctx, StatusSent, 0)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	removed, err := s.Purge(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, ok := s.Get(old.ID)
	assert.False(t, ok)
	_, ok = s.Get(oldPending.ID)
	assert.True(t, ok, "pending records are never purged")
	assert.Equal(t, map[Status]int{StatusPending: 1, StatusSent: 1}, s.Len())
}
