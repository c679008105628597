// Package config handles YAML configuration parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"spraykit/internal/campaign"
	"spraykit/internal/collector"
	"spraykit/internal/scheduler"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxConcurrency = 5
	DefaultDelay          = 1 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// Config is the root configuration structure.
type Config struct {
	Spray  SprayConfig  `yaml:"spray"`
	Report ReportConfig `yaml:"report,omitempty"`
}

// SprayConfig controls pacing and admission of spray attempts.
type SprayConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Delay          time.Duration `yaml:"delay_between_attempts"`
	AttemptTimeout time.Duration `yaml:"per_attempt_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // attempts/sec ceiling, 0 = none
}

// ReportConfig controls how results are rendered.
type ReportConfig struct {
	FailedPreview int    `yaml:"failed_preview"`
	Format        string `yaml:"format"` // text or json
}

// Defaults returns a Config with every field at its default.
func Defaults() Config {
	return Config{
		Spray: SprayConfig{
			MaxConcurrency: DefaultMaxConcurrency,
			Delay:          DefaultDelay,
			AttemptTimeout: DefaultAttemptTimeout,
		},
		Report: ReportConfig{
			FailedPreview: collector.DefaultFailedPreview,
			Format:        "text",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file.
// Keys missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Spray.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be >= 1, got %d", c.Spray.MaxConcurrency))
	}
	if c.Spray.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay_between_attempts must not be negative, got %v", c.Spray.Delay))
	}
	if c.Spray.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("per_attempt_timeout must be positive, got %v", c.Spray.AttemptTimeout))
	}
	if c.Spray.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %v", c.Spray.RateLimit))
	}
	if c.Report.FailedPreview < 0 {
		errs = append(errs, fmt.Errorf("failed_preview must not be negative, got %d", c.Report.FailedPreview))
	}
	if c.Report.Format != "text" && c.Report.Format != "json" {
		errs = append(errs, fmt.Errorf("format must be 'text' or 'json', got %q", c.Report.Format))
	}
	return errors.Join(errs...)
}

// SchedulerOptions converts the spray settings into scheduler options.
// Logger, Recorder and Clock are left for the caller to set.
func (c SprayConfig) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		MaxConcurrency: c.MaxConcurrency,
		Delay:          c.Delay,
		AttemptTimeout: c.AttemptTimeout,
		RateLimit:      c.RateLimit,
	}
}

// CampaignOptions converts the spray settings into campaign options. The
// attempt delay is also used between passes.
func (c SprayConfig) CampaignOptions() campaign.Options {
	return campaign.Options{Delay: c.Delay}
}
