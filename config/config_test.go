// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test engine defaults
	if cfg.Engine.TickInterval != 100*time.Millisecond {
		t.Errorf("expected default tick interval 100ms, got %v", cfg.Engine.TickInterval)
	}
	if cfg.Engine.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Engine.MaxAttempts)
	}

	// Test provider defaults
	if len(cfg.Providers) != 1 || cfg.Providers[0].Type != "static" {
		t.Errorf("expected one static default provider, got %+v", cfg.Providers)
	}

	// Test API defaults
	if cfg.API.Address != ":8080" {
		t.Errorf("expected default API addr :8080, got %s", cfg.API.Address)
	}

	// Test log defaults
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Log.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Engine.TickInterval = 0 },
			wantErr: true,
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.Engine.RateLimit = 0 },
			wantErr: true,
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Engine.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "no providers",
			mutate:  func(c *Config) { c.Providers = nil },
			wantErr: true,
		},
		{
			name: "duplicate provider names",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{
					{Name: "a", Type: "static"},
					{Name: "a", Type: "static"},
				}
			},
			wantErr: true,
		},
		{
			name: "http provider without url",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{Name: "a", Type: "http"}}
			},
			wantErr: true,
		},
		{
			name: "unknown provider type",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{Name: "a", Type: "smtp"}}
			},
			wantErr: true,
		},
		{
			name: "file sink without path",
			mutate: func(c *Config) {
				c.Audit.File.Enabled = true
				c.Audit.File.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "tls cert without key",
			mutate:  func(c *Config) { c.API.TLSCertFile = "/etc/courier/cert.pem" },
			wantErr: true,
		},
		{
			name: "rate limit enabled without rate",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Rate = 0
			},
			wantErr: true,
		},
		{
			name: "otel enabled without endpoint",
			mutate: func(c *Config) {
				c.Otel.Enabled = true
				c.Otel.Endpoint = ""
			},
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/courier.yaml")
	if err != nil {
		t.Fatalf("Load of missing file should fall back to defaults, got %v", err)
	}
	if cfg.Engine.MaxAttempts != Default().Engine.MaxAttempts {
		t.Error("expected default config for missing file")
	}
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") should return defaults, got %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Error("expected default config for empty filename")
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")
	data := []byte(`
engine:
  max_attempts: 5
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Overridden fields
	if cfg.Engine.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.Engine.MaxAttempts)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}

	// Untouched fields keep defaults
	if cfg.Engine.TickInterval != 100*time.Millisecond {
		t.Errorf("expected default tick interval, got %v", cfg.Engine.TickInterval)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")
	data := []byte("engine:\n  max_attempts: 0\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for zero max attempts")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")

	cfg := Default()
	cfg.Engine.MaxAttempts = 2
	cfg.Providers = []ProviderConfig{
		{Name: "primary", Type: "http", URL: "https://hooks.example.com/notify", Timeout: 5 * time.Second},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Engine.MaxAttempts != 2 {
		t.Errorf("expected max attempts 2, got %d", loaded.Engine.MaxAttempts)
	}
	if len(loaded.Providers) != 1 || loaded.Providers[0].URL != "https://hooks.example.com/notify" {
		t.Errorf("provider round trip mismatch: %+v", loaded.Providers)
	}
}
