// Package config provides configuration loading for failbank.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces failbank environment variables.
	envPrefix = "FAILBANK_"

	// maxConfigFileSize rejects unreasonably large config files.
	maxConfigFileSize = 1024 * 1024
)

// Config is the root configuration.
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Memory    MemoryConfig    `koanf:"memory"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// StorageConfig locates the persisted store document and journal.
type StorageConfig struct {
	// Path is the store document location (default:
	// ~/.config/failbank/memory.json).
	Path string `koanf:"path"`

	// JournalEnabled turns on the append-only audit journal.
	JournalEnabled bool `koanf:"journal_enabled"`

	// JournalPath is the journal location (default: <Path dir>/journal.jsonl).
	JournalPath string `koanf:"journal_path"`
}

// MemoryConfig tunes the failure memory engine.
type MemoryConfig struct {
	// Enabled gates the engine; when false every action is a no-op.
	Enabled bool `koanf:"enabled"`

	// SimilarityThreshold is the similar-failure cutoff (0,1].
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// MaxSimilar caps similar-failure results.
	MaxSimilar int `koanf:"max_similar"`

	// MaxSuggestions caps suggested solutions.
	MaxSuggestions int `koanf:"max_suggestions"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the encoder: json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig tunes OpenTelemetry export.
type TelemetryConfig struct {
	// Enabled turns on OTLP export; when false telemetry is a no-op.
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol selects the exporter transport: grpc or http.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS on the exporter connection.
	Insecure bool `koanf:"insecure"`

	// ServiceName identifies this service in telemetry backends.
	ServiceName string `koanf:"service_name"`
}

// Default returns the hardcoded defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			JournalEnabled: true,
		},
		Memory: MemoryConfig{
			Enabled:             true,
			SimilarityThreshold: 0.7,
			MaxSimilar:          5,
			MaxSuggestions:      3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "failbank",
		},
	}
}

// Load reads configuration with the following precedence (highest first):
//
//  1. Environment variables (FAILBANK_STORAGE_PATH, FAILBANK_MEMORY_ENABLED, ...)
//  2. YAML config file (default: ~/.config/failbank/config.yaml)
//  3. Hardcoded defaults
//
// Environment variables map to config keys by stripping the FAILBANK_
// prefix, lowercasing, and splitting section from field on the first
// underscore: FAILBANK_MEMORY_SIMILARITY_THRESHOLD -> memory.similarity_threshold.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "failbank", "config.yaml")
	}

	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file exceeds %d bytes: %s", maxConfigFileSize, configPath)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills values that depend on the environment.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Storage.Path = filepath.Join(home, ".config", "failbank", "memory.json")
		}
	}
	if cfg.Storage.JournalPath == "" && cfg.Storage.Path != "" {
		cfg.Storage.JournalPath = filepath.Join(filepath.Dir(cfg.Storage.Path), "journal.jsonl")
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Memory.SimilarityThreshold <= 0 || c.Memory.SimilarityThreshold > 1 {
		return fmt.Errorf("memory.similarity_threshold must be in (0,1], got %v", c.Memory.SimilarityThreshold)
	}
	if c.Memory.MaxSimilar <= 0 {
		return fmt.Errorf("memory.max_similar must be positive, got %d", c.Memory.MaxSimilar)
	}
	if c.Memory.MaxSuggestions <= 0 {
		return fmt.Errorf("memory.max_suggestions must be positive, got %d", c.Memory.MaxSuggestions)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol)
		}
	}

	return nil
}
