package cli

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("INQUIRY_TEST_ENV", "custom-value")

	if got := getEnvString("INQUIRY_TEST_ENV", "default"); got != "custom-value" {
		t.Fatalf("expected env override, got %s", got)
	}

	if got := getEnvString("INQUIRY_UNKNOWN_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{value: "true", def: false, want: true},
		{value: "1", def: false, want: true},
		{value: "YES", def: false, want: true},
		{value: "false", def: true, want: false},
		{value: "0", def: true, want: false},
		{value: "sometimes", def: true, want: true},
		{value: "sometimes", def: false, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("INQUIRY_BOOL_TEST", tt.value)
			assert.Equal(t, tt.want, getEnvBool("INQUIRY_BOOL_TEST", tt.def))
		})
	}
}

func TestParseArgs(t *testing.T) {
	t.Setenv("ENABLE_PURGE", "false")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := ParseArgs(fs, []string{"--debug", "--config-path", "/etc/inquiry/config.yaml", "--sweep-interval", "1m"})

	assert.True(t, c.Debug)
	assert.Equal(t, "/etc/inquiry/config.yaml", c.ConfigPath)
	assert.Equal(t, "1m", c.SweepInterval)
	assert.True(t, c.EnableSweeper)
	assert.False(t, c.EnablePurge, "env fallback applies when the flag is not given")
	assert.Equal(t, ".env", c.EnvFile)

	c.Print(zaptest.NewLogger(t).Sugar())
}

func TestParseSweepInterval(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	tests := []struct {
		name     string
		value    string
		fallback time.Duration
		want     time.Duration
	}{
		{name: "flag wins", value: "30s", fallback: time.Minute, want: 30 * time.Second},
		{name: "config fallback", value: "", fallback: time.Minute, want: time.Minute},
		{name: "built-in default", value: "", want: DefaultSweepInterval},
		{name: "invalid value", value: "often", fallback: 2 * time.Minute, want: 2 * time.Minute},
		{name: "negative value", value: "-1m", want: DefaultSweepInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSweepInterval(tt.value, tt.fallback, log))
		})
	}
}
