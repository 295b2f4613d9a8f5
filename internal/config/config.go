// Package config holds the run configuration. Defaults come from the
// environment so the converter can be wired into collection pipelines
// without flag plumbing; command-line flags override on top.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is one conversion run's settings.
type Config struct {
	// SkipSeconds drops this many seconds of records from the start of
	// the recording.
	SkipSeconds float64 `env:"SCHEDTRACE_SKIP" envDefault:"0"`

	// DurationSeconds bounds how many seconds of records to process
	// after the skip. Zero means until end of recording.
	DurationSeconds float64 `env:"SCHEDTRACE_DURATION" envDefault:"0"`

	// WaitThresholdMS is the minimum time, in milliseconds, a thread
	// must have waited to appear on the long-wait track.
	WaitThresholdMS float64 `env:"SCHEDTRACE_WAIT" envDefault:"3"`

	// FilterExpr is an optional boolean expression selecting which
	// records to process. Empty selects everything.
	FilterExpr string `env:"SCHEDTRACE_FILTER"`

	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string `env:"SCHEDTRACE_LOG_LEVEL" envDefault:"info"`
}

// FromEnv builds a Config from SCHEDTRACE_* environment variables, with
// documented defaults for anything unset.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.SkipSeconds < 0 {
		return fmt.Errorf("config: skip seconds must not be negative, got %g", c.SkipSeconds)
	}
	if c.DurationSeconds < 0 {
		return fmt.Errorf("config: duration seconds must not be negative, got %g", c.DurationSeconds)
	}
	if c.WaitThresholdMS < 0 {
		return fmt.Errorf("config: wait threshold must not be negative, got %g", c.WaitThresholdMS)
	}
	return nil
}
