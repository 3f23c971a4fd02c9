// Package config provides configuration loading for the pipeline: a JSON
// app config merged with CLI flags and environment, plus a YAML tuning file
// for scoring weights and keyword lists.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the app configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Paths
	SourcesPath string `json:"sources,omitempty"` // Path to source definitions JSON
	TuningPath  string `json:"tuning,omitempty"`  // Path to scoring/keyword YAML

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Scraping
	ScrapeWorkers  int    `json:"scrape_workers,omitempty"`   // Worker pool size across sources
	ScrapeInterval int    `json:"scrape_interval_h,omitempty"` // Hours between scheduled scrape cycles
	ArchiveAfter   int    `json:"archive_after,omitempty"`    // Consecutive miss cycles before archival
	UserAgent      string `json:"user_agent,omitempty"`

	// Applications
	MaxActiveRuns   int `json:"max_active_runs,omitempty"`   // Concurrent workflow run cap
	StepTimeoutS    int `json:"step_timeout_s,omitempty"`    // Per automation step timeout
	MaxStepAttempts int `json:"max_step_attempts,omitempty"` // Retry bound per workflow state
	CaptchaWaitS    int `json:"captcha_wait_s,omitempty"`    // Suspension wait before giving up

	// Server
	Port int `json:"port,omitempty"`

	// Behavior
	Verbose bool `json:"verbose,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.ScrapeWorkers < 0 {
		return fmt.Errorf("config error: 'scrape_workers' must be non-negative")
	}
	if c.MaxActiveRuns < 0 {
		return fmt.Errorf("config error: 'max_active_runs' must be non-negative")
	}
	if c.MaxStepAttempts < 0 {
		return fmt.Errorf("config error: 'max_step_attempts' must be non-negative")
	}
	if c.SourcesPath != "" {
		if _, err := os.Stat(c.SourcesPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: sources file not found: %s", c.SourcesPath)
		}
	}
	if c.TuningPath != "" {
		if _, err := os.Stat(c.TuningPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: tuning file not found: %s", c.TuningPath)
		}
	}
	return nil
}

// ApplyDefaults fills zero-valued fields with operational defaults.
func (c *Config) ApplyDefaults() {
	if c.ScrapeWorkers == 0 {
		c.ScrapeWorkers = 4
	}
	if c.ScrapeInterval == 0 {
		c.ScrapeInterval = 6
	}
	if c.ArchiveAfter == 0 {
		c.ArchiveAfter = 3
	}
	if c.MaxActiveRuns == 0 {
		c.MaxActiveRuns = 2
	}
	if c.StepTimeoutS == 0 {
		c.StepTimeoutS = 45
	}
	if c.MaxStepAttempts == 0 {
		c.MaxStepAttempts = 3
	}
	if c.CaptchaWaitS == 0 {
		c.CaptchaWaitS = 600
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}
