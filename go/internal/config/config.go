// Package config loads the standup service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/standup/go/internal/models"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Meeting models.MeetingConfig `yaml:"meeting"`
	Timer   TimerConfig          `yaml:"timer"`
	Server  ServerConfig         `yaml:"server"`
	NATS    NATSConfig           `yaml:"nats"`
	Log     LogConfig            `yaml:"log"`
}

type TimerConfig struct {
	// Frequency is the poll interval while a speaker is on the clock.
	Frequency time.Duration `yaml:"frequency"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Meeting: models.MeetingConfig{
			Title:           "Daily standup",
			LengthInMinutes: 15,
		},
		Timer: TimerConfig{Frequency: time.Second / 60},
		Server: ServerConfig{
			Port:           "8080",
			PublishTimeout: 5 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			StreamName:    "MEETING_EVENTS",
			SubjectPrefix: "meeting.events",
		},
		Log: LogConfig{Level: "info", Console: true},
	}
}

// Load reads path on top of Default and then applies environment overrides.
// An empty path or a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Meeting.Title = getEnv("MEETING_TITLE", c.Meeting.Title)
	c.Meeting.LengthInMinutes = getEnvAsInt("MEETING_LENGTH_MINUTES", c.Meeting.LengthInMinutes)
	if attendees := os.Getenv("MEETING_ATTENDEES"); attendees != "" {
		c.Meeting.Attendees = splitList(attendees)
	}
	c.Timer.Frequency = getEnvAsDuration("TIMER_FREQUENCY", c.Timer.Frequency)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate rejects values the timer cannot run with.
func (c Config) Validate() error {
	if c.Meeting.LengthInMinutes < 0 {
		return fmt.Errorf("meeting length must not be negative, got %d", c.Meeting.LengthInMinutes)
	}
	if c.Timer.Frequency <= 0 {
		return fmt.Errorf("timer frequency must be positive, got %s", c.Timer.Frequency)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// LogLevel returns the parsed log level. Validate has already checked it.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
