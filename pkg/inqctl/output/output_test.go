/*
SPDX-FileCopyrightText: 2026 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/storage"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: "json", want: FormatJSON},
		{in: "yaml", want: FormatYAML},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteObject(t *testing.T) {
	obj := delivery.SweepResult{Processed: 2, Sent: 1, Failed: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatJSON, obj))
	var fromJSON delivery.SweepResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, obj, fromJSON)

	buf.Reset()
	require.NoError(t, WriteObject(&buf, FormatYAML, storage.PurgeStats{Deliveries: 3}))
	var fromYAML map[string]int
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, 3, fromYAML["deliveries"])

	assert.Error(t, WriteObject(&buf, FormatTable, obj))
	assert.Error(t, WriteObject(&buf, Format("xml"), obj))
}

func TestWriteDeliveryTable(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	WriteDeliveryTable(&buf, []delivery.Record{{
		ID:         "rec-1",
		Channel:    delivery.ChannelConfirmation,
		Status:     delivery.StatusPending,
		RetryCount: 2,
		LastError:  "smtp: 421\nservice not available",
		CreatedAt:  created,
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "LAST_ERROR")
	assert.Contains(t, lines[1], "rec-1")
	assert.Contains(t, lines[1], "confirmation")
	assert.Contains(t, lines[1], "2026-03-01T09:30:00Z")
	assert.Contains(t, lines[1], "smtp: 421 service not available")
}

func TestWriteSweepAndPurge(t *testing.T) {
	var buf bytes.Buffer
	WriteSweepResult(&buf, delivery.SweepResult{Processed: 4, Sent: 3, Retrying: 1})
	assert.Contains(t, buf.String(), "PROCESSED")
	assert.Contains(t, buf.String(), "4")

	buf.Reset()
	WritePurgeStats(&buf, storage.PurgeStats{Deliveries: 5, Counters: 6, Audit: 7})
	assert.Contains(t, buf.String(), "failed_emails")
	assert.Contains(t, buf.String(), "7")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "-", truncate("", 10))
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
