// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadMasked(t *testing.T) {
	p := samplePayload()
	p.Data = append(p.Data, Field{Key: "first_name", Value: "Jane"}, Field{Key: "Last-Name", Value: "Doe"})

	masked := p.Masked()

	assert.Equal(t, map[string]string{
		"name":       Redacted,
		"email":      Redacted,
		"phone":      Redacted,
		"company":    "Acme",
		"message":    Redacted,
		"first_name": Redacted,
		"Last-Name":  Redacted,
	}, masked.LogFields())
	assert.Equal(t, "contact", masked.FormType)

	// original must stay intact for delivery
	assert.Equal(t, "jane@example.com", p.SubmitterEmail())
	assert.Equal(t, "Jane Doe", p.Value("name"))
}

func TestPayloadMaskedKeepsEmptyValues(t *testing.T) {
	p := Payload{Data: []Field{{Key: "phone", Value: ""}}}
	assert.Equal(t, "", p.Masked().Data[0].Value)
}

func TestSubmitterEmail(t *testing.T) {
	tests := []struct {
		name string
		data []Field
		want string
	}{
		{name: "present", data: []Field{{Key: "email", Value: "a@b.de"}}, want: "a@b.de"},
		{name: "trimmed", data: []Field{{Key: "email", Value: "  a@b.de "}}, want: "a@b.de"},
		{name: "missing", data: []Field{{Key: "name", Value: "x"}}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payload{Data: tt.data}.SubmitterEmail())
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "pending", want: StatusPending},
		{in: " SENT ", want: StatusSent},
		{in: "failed", want: StatusFailed},
		{in: "archived", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlertFormatting(t *testing.T) {
	assert.Equal(t, "Email retry failed: notification", AlertSubject(ChannelNotification))
	assert.Equal(t, "Email with ID abc failed after 3 attempts. Last error: timeout", AlertBody("abc", 3, "timeout"))
}
