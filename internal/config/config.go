package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Durations are expressed in
// seconds to keep the YAML plain.
type Config struct {
	NamePrefix      string `yaml:"name_prefix"`
	ScanWindowSec   int    `yaml:"scan_window_seconds"`
	PollIntervalSec int    `yaml:"poll_interval_seconds"`
	PollTimeoutSec  int    `yaml:"poll_timeout_seconds"`
	IdentifySec     int    `yaml:"identify_duration_seconds"`
	LogLevel        string `yaml:"log_level"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lhctl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the production values: Lighthouse base
// stations advertise as "LHB-XXXXXXXX", boot in well under 18 seconds,
// and blink for about 20 seconds on identify.
func Default() *Config {
	return &Config{
		NamePrefix:      "LHB-",
		ScanWindowSec:   10,
		PollIntervalSec: 1,
		PollTimeoutSec:  18,
		IdentifySec:     20,
		LogLevel:        "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NamePrefix) == "" {
		return fmt.Errorf("name_prefix must not be empty")
	}

	if c.ScanWindowSec <= 0 {
		return fmt.Errorf("scan_window_seconds must be > 0")
	}

	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0")
	}

	if c.PollTimeoutSec < c.PollIntervalSec {
		return fmt.Errorf("poll_timeout_seconds must be >= poll_interval_seconds")
	}

	if c.IdentifySec <= 0 {
		return fmt.Errorf("identify_duration_seconds must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
