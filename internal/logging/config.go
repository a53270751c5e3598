package logging

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug for prompt and payload dumps. It is almost
// always filtered in production.
const TraceLevel = zapcore.Level(-2)

// ParseLevel parses a level name, accepting "trace".
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// Config holds logger settings.
type Config struct {
	Level  zapcore.Level
	Format string // "json" or "console"
	Stdout bool
	OTEL   bool

	Sampling SamplingConfig

	// Fields are attached to every entry.
	Fields map[string]string

	RedactKeys     []string
	RedactPatterns []string
}

// SamplingConfig bounds the volume of identical entries below Error.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// NewDefaultConfig returns production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Stdout: true,
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Fields: map[string]string{"service": "expertd"},
		RedactKeys: []string{
			"password", "secret", "token", "api_key", "authorization", "bearer",
		},
		RedactPatterns: []string{
			`(?i)bearer\s+\S+`,
			`sk-[A-Za-z0-9_-]{16,}`,
		},
	}
}

// FromSettings builds a Config from the loaded application configuration.
func FromSettings(s config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", s.Level, err)
	}
	cfg.Level = level
	if s.Format != "" {
		cfg.Format = s.Format
	}
	cfg.OTEL = s.OTEL
	cfg.Sampling.Enabled = s.Sampling
	return cfg, nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	for _, p := range c.RedactPatterns {
		if len(p) > 200 {
			return fmt.Errorf("redaction pattern too long (max 200 chars): %q", p)
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q must have a non-empty key and value", k)
		}
	}
	return nil
}
