package config

import (
	"testing"
	"time"
)

func TestParseDuration_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"1s", 1 * time.Second},
		{"30s", 30 * time.Second},
		{"1m", 1 * time.Minute},
		{"5m", 5 * time.Minute},
		{"1h", 1 * time.Hour},
		{"24h", 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if err != nil {
				t.Fatalf("ParseDuration(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	tests := []string{
		"",
		"invalid",
		"30",
		"30x",
		"30 s",
		"s30",
		"-5m",
		"1.5h",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			if err == nil {
				t.Errorf("ParseDuration(%q) expected error, got nil", input)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{1 * time.Hour, "1h"},
		{24 * time.Hour, "1d"},
		{7 * 24 * time.Hour, "7d"},
		{90 * time.Second, "90s"},
		{90 * time.Minute, "90m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatDuration(tt.input)
			if got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults with fixture dir",
			mutate: func(c *Config) { c.FixtureDir = "fixtures" },
		},
		{
			name:    "defaults without fixture dir",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "invalid port",
			mutate: func(c *Config) {
				c.FixtureDir = "fixtures"
				c.Port = 0
			},
			wantErr: true,
		},
		{
			name: "unknown source type",
			mutate: func(c *Config) {
				c.SourceType = "imaginary"
			},
			wantErr: true,
		},
		{
			name: "alert factor at or below 1",
			mutate: func(c *Config) {
				c.FixtureDir = "fixtures"
				c.CostAlertFactor = 1.0
			},
			wantErr: true,
		},
		{
			name: "live source needs no fixture dir",
			mutate: func(c *Config) {
				c.SourceType = "live"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
