package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "standup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MEETING_TITLE", "MEETING_LENGTH_MINUTES", "MEETING_ATTENDEES", "TIMER_FREQUENCY",
		"PORT", "NATS_ENABLED", "NATS_URL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
meeting:
  title: Sprint planning
  length_in_minutes: 30
  attendees: [Amy, Bo, Cy]
timer:
  frequency: 100ms
server:
  port: "9090"
nats:
  enabled: true
  url: nats://bus:4222
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Sprint planning", cfg.Meeting.Title)
	assert.Equal(t, 30, cfg.Meeting.LengthInMinutes)
	assert.Equal(t, []string{"Amy", "Bo", "Cy"}, cfg.Meeting.Attendees)
	assert.Equal(t, 100*time.Millisecond, cfg.Timer.Frequency)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.Equal(t, "MEETING_EVENTS", cfg.NATS.StreamName, "unset keys keep defaults")
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "meeting:\n  length_in_minutes: 30\n")
	t.Setenv("MEETING_LENGTH_MINUTES", "10")
	t.Setenv("MEETING_ATTENDEES", "Amy, Bo,,")
	t.Setenv("PORT", "7000")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("TIMER_FREQUENCY", "50ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Meeting.LengthInMinutes)
	assert.Equal(t, []string{"Amy", "Bo"}, cfg.Meeting.Attendees)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, 50*time.Millisecond, cfg.Timer.Frequency)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{name: "negative length", body: "meeting:\n  length_in_minutes: -5\n"},
		{name: "zero frequency", body: "timer:\n  frequency: 0s\n"},
		{name: "bad level", body: "log:\n  level: loud\n"},
		{name: "bad yaml", body: "meeting: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
