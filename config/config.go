// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/courier/audit"
	"github.com/absmach/courier/dispatch"
	"github.com/absmach/courier/ratelimit"
	"github.com/absmach/courier/server/api"
	"github.com/absmach/courier/server/health"
	"github.com/absmach/courier/server/otel"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the courier dispatcher.
type Config struct {
	Engine    dispatch.Config  `yaml:"engine"`
	Providers []ProviderConfig `yaml:"providers"`
	Audit     AuditConfig      `yaml:"audit"`
	API       api.Config       `yaml:"api"`
	Health    HealthConfig     `yaml:"health"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Otel      otel.Config      `yaml:"otel"`
	Log       LogConfig        `yaml:"log"`
}

// ProviderConfig describes one delivery provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // http, static

	// HTTP provider settings
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`

	// Static provider settings, useful for local testing
	Fail    bool          `yaml:"fail"`
	Latency time.Duration `yaml:"latency"`
}

// AuditConfig holds audit sink configuration.
type AuditConfig struct {
	File   audit.FileConfig   `yaml:"file"`
	Badger audit.BadgerConfig `yaml:"badger"`
}

// HealthConfig holds health server configuration.
type HealthConfig struct {
	Enabled       bool `yaml:"enabled"`
	health.Config `yaml:",inline"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults: one local static
// provider and all optional surfaces disabled.
func Default() *Config {
	return &Config{
		Engine: dispatch.DefaultConfig(),
		Providers: []ProviderConfig{
			{Name: "local", Type: "static"},
		},
		Audit: AuditConfig{
			File: audit.FileConfig{
				Enabled:      false,
				Path:         "/tmp/courier/audit.log",
				MaxSizeBytes: 64 * 1024 * 1024,
				Compress:     true,
			},
			Badger: audit.BadgerConfig{
				Enabled: false,
				Dir:     "/tmp/courier/audit",
			},
		},
		API: api.DefaultConfig(),
		Health: HealthConfig{
			Enabled: true,
			Config:  health.DefaultConfig(),
		},
		RateLimit: ratelimit.DefaultConfig(),
		Otel:      otel.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the filename is empty or missing. Loaded values overlay the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive")
	}
	if c.Engine.RateLimit < 1 {
		return fmt.Errorf("engine.rate_limit must be at least 1")
	}
	if c.Engine.RateWindow <= 0 {
		return fmt.Errorf("engine.rate_window must be positive")
	}
	if c.Engine.MaxAttempts < 1 {
		return fmt.Errorf("engine.max_attempts must be at least 1")
	}
	if c.Engine.BackoffBase < 0 {
		return fmt.Errorf("engine.backoff_base cannot be negative")
	}
	if c.Engine.BreakerThreshold < 1 {
		return fmt.Errorf("engine.breaker_threshold must be at least 1")
	}
	if c.Engine.BreakerCooldown <= 0 {
		return fmt.Errorf("engine.breaker_cooldown must be positive")
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name cannot be empty", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case "http":
			if p.URL == "" {
				return fmt.Errorf("providers[%d].url required for http provider", i)
			}
		case "static":
		default:
			return fmt.Errorf("providers[%d].type must be one of: http, static", i)
		}
	}

	if c.Audit.File.Enabled && c.Audit.File.Path == "" {
		return fmt.Errorf("audit.file.path required when file sink is enabled")
	}
	if c.Audit.Badger.Enabled && c.Audit.Badger.Dir == "" {
		return fmt.Errorf("audit.badger.dir required when badger sink is enabled")
	}

	if c.API.Address == "" {
		return fmt.Errorf("api.address cannot be empty")
	}
	if (c.API.TLSCertFile == "") != (c.API.TLSKeyFile == "") {
		return fmt.Errorf("api.tls_cert_file and api.tls_key_file must be set together")
	}
	if c.Health.Enabled && c.Health.Address == "" {
		return fmt.Errorf("health.address required when health server is enabled")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate_limit.rate must be positive")
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("rate_limit.burst must be at least 1")
		}
	}

	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		return fmt.Errorf("otel.endpoint required when otel is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
