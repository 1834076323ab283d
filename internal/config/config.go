// Package config loads and validates batch configuration. Every
// recognized option has an explicit field and default; unknown YAML
// keys are rejected and out-of-range values fail at batch start, never
// mid-run.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Config is the full recognized configuration surface.
type Config struct {
	// Concurrency is the maximum number of simultaneous page analyses.
	Concurrency int

	// TTL is how long cached analysis results stay valid.
	TTL time.Duration

	// UnitTimeout bounds each page analysis.
	UnitTimeout time.Duration

	// FailFast stops admitting new units after the first failure;
	// in-flight units still resolve.
	FailFast bool

	// RollingWindowSize is the number of completion timestamps used for
	// throughput/ETA estimation.
	RollingWindowSize int

	// ValidatorVersion labels cache entries; bumping it invalidates all
	// previously cached analyses. Must be a valid semver string ("v1.2.3").
	ValidatorVersion string

	// CachePath is the SQLite cache database location.
	CachePath string

	// Analyzer settings.
	Analyzer AnalyzerConfig
}

// AnalyzerConfig configures the AI page analyzer.
type AnalyzerConfig struct {
	Model             string  `yaml:"model,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Concurrency:       4,
		TTL:               7 * 24 * time.Hour,
		UnitTimeout:       2 * time.Minute,
		FailFast:          false,
		RollingWindowSize: 20,
		ValidatorVersion:  "v1.0.0",
		CachePath:         ".pagecheck/cache.db",
	}
}

// fileConfig is the YAML-facing shape. Durations are strings ("72h",
// "90s") and get parsed into Config; this mirrors how yaml encodes them.
type fileConfig struct {
	Concurrency       *int           `yaml:"concurrency"`
	TTL               string         `yaml:"ttl"`
	UnitTimeout       string         `yaml:"unit_timeout"`
	FailFast          *bool          `yaml:"fail_fast"`
	RollingWindowSize *int           `yaml:"rolling_window_size"`
	ValidatorVersion  string         `yaml:"validator_version"`
	CachePath         string         `yaml:"cache_path"`
	Analyzer          AnalyzerConfig `yaml:"analyzer"`
}

// Load reads a YAML config file over the defaults, then applies
// PAGECHECK_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		var fc fileConfig
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if err := fc.apply(cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies the file's explicitly set fields onto cfg.
func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.TTL != "" {
		d, err := time.ParseDuration(fc.TTL)
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", fc.TTL, err)
		}
		cfg.TTL = d
	}
	if fc.UnitTimeout != "" {
		d, err := time.ParseDuration(fc.UnitTimeout)
		if err != nil {
			return fmt.Errorf("invalid unit_timeout %q: %w", fc.UnitTimeout, err)
		}
		cfg.UnitTimeout = d
	}
	if fc.FailFast != nil {
		cfg.FailFast = *fc.FailFast
	}
	if fc.RollingWindowSize != nil {
		cfg.RollingWindowSize = *fc.RollingWindowSize
	}
	if fc.ValidatorVersion != "" {
		cfg.ValidatorVersion = fc.ValidatorVersion
	}
	if fc.CachePath != "" {
		cfg.CachePath = fc.CachePath
	}
	cfg.Analyzer = fc.Analyzer
	return nil
}

// applyEnv layers environment overrides over file/default values.
func (c *Config) applyEnv() {
	c.Concurrency = getEnvInt("PAGECHECK_CONCURRENCY", c.Concurrency)
	c.TTL = getEnvDuration("PAGECHECK_TTL", c.TTL)
	c.UnitTimeout = getEnvDuration("PAGECHECK_UNIT_TIMEOUT", c.UnitTimeout)
	c.FailFast = getEnvBool("PAGECHECK_FAIL_FAST", c.FailFast)
	c.RollingWindowSize = getEnvInt("PAGECHECK_ROLLING_WINDOW", c.RollingWindowSize)
	if v := os.Getenv("PAGECHECK_VALIDATOR_VERSION"); v != "" {
		c.ValidatorVersion = v
	}
	if v := os.Getenv("PAGECHECK_CACHE_PATH"); v != "" {
		c.CachePath = v
	}
}

// Validate checks every option eagerly. A configuration error is the
// only fatal error class in the engine, and it fires before any unit is
// dispatched.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1 (got %d)", c.Concurrency)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", c.TTL)
	}
	if c.UnitTimeout <= 0 {
		return fmt.Errorf("unit_timeout must be positive (got %v)", c.UnitTimeout)
	}
	if c.RollingWindowSize < 2 {
		return fmt.Errorf("rolling_window_size must be at least 2 (got %d)", c.RollingWindowSize)
	}
	if !semver.IsValid(c.ValidatorVersion) {
		return fmt.Errorf("validator_version %q is not a valid semver string (want e.g. v1.2.3)", c.ValidatorVersion)
	}
	if c.CachePath == "" {
		return fmt.Errorf("cache_path is required")
	}
	if c.Analyzer.RequestsPerSecond < 0 {
		return fmt.Errorf("analyzer.requests_per_second cannot be negative (got %v)", c.Analyzer.RequestsPerSecond)
	}
	return nil
}

// getEnvInt retrieves an int from an environment variable, or returns the default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a bool from an environment variable, or returns the default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration from an environment variable, or returns the default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
