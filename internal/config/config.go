package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Storage settings
	DBPath string `yaml:"dbPath"`

	// Metrics source settings
	SourceType    string `yaml:"sourceType"` // "live" or "fixture"
	FixtureDir    string `yaml:"fixtureDir"`
	MonitorTarget string `yaml:"monitorTarget"`

	// Synthetic check settings
	CheckDir         string `yaml:"checkDir"`
	CheckSchemaPath  string `yaml:"checkSchemaPath"`
	CheckConcurrency int64  `yaml:"checkConcurrency"`
	LatestCacheTTL   time.Duration
	RedisAddr        string `yaml:"redisAddr"` // empty means in-memory latest cache

	// Alerting settings
	AlertWebhookURL string `yaml:"alertWebhookURL"`

	// Cost tracking settings
	BillingURL      string  `yaml:"billingURL"`
	CostAlertFactor float64 `yaml:"costAlertFactor"`

	// Chaos settings
	ChaosRecoveryTimeout time.Duration

	// Scheduling intervals
	MonitorInterval time.Duration
	CostInterval    time.Duration
	CheckInterval   time.Duration

	// Operational settings
	GracefulShutdownTimeout time.Duration
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.SourceType != "live" && c.SourceType != "fixture" {
		return fmt.Errorf("source type must be 'live' or 'fixture'")
	}

	if c.SourceType == "fixture" && c.FixtureDir == "" {
		return fmt.Errorf("fixture directory required when source type is 'fixture'")
	}

	if c.CostAlertFactor <= 1 {
		return fmt.Errorf("cost alert factor must be greater than 1, got %g", c.CostAlertFactor)
	}

	if c.CheckConcurrency < 1 {
		return fmt.Errorf("check concurrency must be at least 1, got %d", c.CheckConcurrency)
	}

	if c.MonitorInterval <= 0 || c.CostInterval <= 0 || c.CheckInterval <= 0 {
		return fmt.Errorf("scheduling intervals must be positive")
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		DBPath:                  "vigil.db",
		SourceType:              "fixture",
		CheckSchemaPath:         "schemas/check_v1.json",
		CheckConcurrency:        1,
		LatestCacheTTL:          time.Hour,
		CostAlertFactor:         1.5,
		ChaosRecoveryTimeout:    30 * time.Second,
		MonitorInterval:         time.Minute,
		CostInterval:            24 * time.Hour,
		CheckInterval:           5 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// fileConfig mirrors Config for the YAML overlay, with durations as strings
type fileConfig struct {
	Config               `yaml:",inline"`
	LatestCacheTTL       string `yaml:"latestCacheTTL"`
	ChaosRecoveryTimeout string `yaml:"chaosRecoveryTimeout"`
	MonitorInterval      string `yaml:"monitorInterval"`
	CostInterval         string `yaml:"costInterval"`
	CheckInterval        string `yaml:"checkInterval"`
	ShutdownTimeout      string `yaml:"shutdownTimeout"`
}

// LoadFile overlays configuration from a YAML file onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	*c = fc.Config

	durations := []struct {
		raw  string
		dest *time.Duration
	}{
		{fc.LatestCacheTTL, &c.LatestCacheTTL},
		{fc.ChaosRecoveryTimeout, &c.ChaosRecoveryTimeout},
		{fc.MonitorInterval, &c.MonitorInterval},
		{fc.CostInterval, &c.CostInterval},
		{fc.CheckInterval, &c.CheckInterval},
		{fc.ShutdownTimeout, &c.GracefulShutdownTimeout},
	}

	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q in config file: %w", d.raw, err)
		}
		*d.dest = parsed
	}

	return nil
}
