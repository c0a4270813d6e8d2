// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mail delivery service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Push    PushConfig    `yaml:"push"`
	Deliver DeliverConfig `yaml:"deliver"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	APIAddr         string        `yaml:"api_addr"`
	HealthAddr      string        `yaml:"health_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"` // OTLP endpoint
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthEnabled   bool          `yaml:"health_enabled"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`

	OtelServiceName    string `yaml:"otel_service_name"`
	OtelServiceVersion string `yaml:"otel_service_version"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	Type string `yaml:"type"` // memory, badger

	// BadgerDB settings
	BadgerDir string `yaml:"badger_dir"`
}

// PushConfig holds push retry and rescan settings.
type PushConfig struct {
	// Maximum failed sends counted against a push before it dies.
	MaxRetry int `yaml:"max_retry"`

	// Rescan timing for RETRYING pushes.
	ScanDelay    time.Duration `yaml:"scan_delay"`
	ScanInterval time.Duration `yaml:"scan_interval"`

	// Rescan timing for IDLE schedules.
	ScheduleScanDelay    time.Duration `yaml:"schedule_scan_delay"`
	ScheduleScanInterval time.Duration `yaml:"schedule_scan_interval"`
}

// DeliverConfig holds outbound delivery settings.
type DeliverConfig struct {
	// Worker pool for group sync deliveries.
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`

	// Global outbound send rate (sends per second, 0 = unlimited).
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`

	// Per-send timeout across all transports.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// Circuit breaker for the HTTP transport.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`

	// MQTT transport endpoint.
	MQTTEnabled  bool   `yaml:"mqtt_enabled"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			APIAddr:            ":8080",
			HealthAddr:         ":8081",
			HealthEnabled:      true,
			MetricsAddr:        "localhost:4317",
			MetricsEnabled:     false,
			ShutdownTimeout:    30 * time.Second,
			OtelServiceName:    "mailmq",
			OtelServiceVersion: "0.1.0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Type:      "badger",
			BadgerDir: "/tmp/mailmq/data",
		},
		Push: PushConfig{
			MaxRetry:             3,
			ScanDelay:            10 * time.Second,
			ScanInterval:         30 * time.Second,
			ScheduleScanDelay:    10 * time.Second,
			ScheduleScanInterval: 30 * time.Second,
		},
		Deliver: DeliverConfig{
			Workers:          5,
			QueueSize:        1000,
			Rate:             100,
			Burst:            20,
			SendTimeout:      5 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     60 * time.Second,
			MQTTEnabled:      false,
			MQTTBroker:       "tcp://localhost:1883",
			MQTTClientID:     "mailmq-deliver",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
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

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.APIAddr == "" {
		return fmt.Errorf("server.api_addr cannot be empty")
	}
	if c.Server.HealthEnabled && c.Server.HealthAddr == "" {
		return fmt.Errorf("server.health_addr required when health is enabled")
	}
	if c.Server.MetricsEnabled && c.Server.OtelServiceName == "" {
		return fmt.Errorf("server.otel_service_name cannot be empty when metrics enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	validStorage := map[string]bool{"memory": true, "badger": true}
	if !validStorage[c.Storage.Type] {
		return fmt.Errorf("storage.type must be one of: memory, badger")
	}
	if c.Storage.Type == "badger" && c.Storage.BadgerDir == "" {
		return fmt.Errorf("storage.badger_dir required when type is badger")
	}

	if c.Push.MaxRetry < 0 {
		return fmt.Errorf("push.max_retry cannot be negative")
	}
	if c.Push.ScanInterval < time.Second {
		return fmt.Errorf("push.scan_interval must be at least 1 second")
	}
	if c.Push.ScheduleScanInterval < time.Second {
		return fmt.Errorf("push.schedule_scan_interval must be at least 1 second")
	}

	if c.Deliver.Workers < 1 {
		return fmt.Errorf("deliver.workers must be at least 1")
	}
	if c.Deliver.QueueSize < 1 {
		return fmt.Errorf("deliver.queue_size must be at least 1")
	}
	if c.Deliver.Rate < 0 {
		return fmt.Errorf("deliver.rate cannot be negative")
	}
	if c.Deliver.SendTimeout < time.Second {
		return fmt.Errorf("deliver.send_timeout must be at least 1 second")
	}
	if c.Deliver.BreakerThreshold < 1 {
		return fmt.Errorf("deliver.breaker_threshold must be at least 1")
	}
	if c.Deliver.MQTTEnabled && c.Deliver.MQTTBroker == "" {
		return fmt.Errorf("deliver.mqtt_broker required when MQTT transport is enabled")
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
