// Package config loads and validates the application's YAML
// configuration and builds the runtime objects it describes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Exported constants.
const (
	// DefaultLogLevel is used when the config file does not set one.
	DefaultLogLevel = "info"
	// DefaultStoreKind is used when the config file does not select an
	// event store.
	DefaultStoreKind = "memory"
)

// ProviderConfig describes one named storage provider.
type ProviderConfig struct {
	// Kind selects the backend: local, memory or sftp.
	Kind string `mapstructure:"kind"`
	// Root is the backend's base directory (local, sftp).
	Root string `mapstructure:"root"`
	// Lifetime is singleton (default) or transient.
	Lifetime string `mapstructure:"lifetime"`
	// Behaviors wrap the provider in order: logging, caching, retry.
	Behaviors []string `mapstructure:"behaviors"`
	// CacheTTL overrides the caching behavior's expiry.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// MaxRetries overrides the retry behavior's attempt count.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoff overrides the retry behavior's initial delay.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// SFTP connection settings.
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	PoolInitial int    `mapstructure:"pool_initial"`
	PoolMax     int    `mapstructure:"pool_max"`
}

// ProcessorConfig describes one processor attached to a location.
type ProcessorConfig struct {
	// Type selects the processor: log or archive.
	Type string `mapstructure:"type"`
	// ArchiveProvider names the provider archived copies go to.
	ArchiveProvider string `mapstructure:"archive_provider"`
	// ArchiveRoot is the directory archived copies land under.
	ArchiveRoot string `mapstructure:"archive_root"`
}

// LocationConfig describes one monitored location.
type LocationConfig struct {
	// Name uniquely identifies the location.
	Name string `mapstructure:"name"`
	// Provider names the providers entry backing the location.
	Provider string `mapstructure:"provider"`
	// Pattern selects which files belong to the location.
	Pattern string `mapstructure:"pattern"`
	// OnDemand excludes the location from continuous watching.
	OnDemand bool `mapstructure:"on_demand"`
	// RateLimit is the scanning speed preset: high, medium or low.
	RateLimit string `mapstructure:"rate_limit"`
	// Processors handle events in order.
	Processors []ProcessorConfig `mapstructure:"processors"`
}

// StoreConfig selects the event store backend.
type StoreConfig struct {
	// Kind is memory or sqlite.
	Kind string `mapstructure:"kind"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
}

// Config is the application configuration.
type Config struct {
	LogLevel  string                    `mapstructure:"log_level"`
	Store     StoreConfig               `mapstructure:"store"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Locations []LocationConfig          `mapstructure:"locations"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("store.kind", DefaultStoreKind)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for internal consistency.
func (cfg *Config) Validate() error {
	switch cfg.Store.Kind {
	case "memory":
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store: sqlite requires a path")
		}
	default:
		return fmt.Errorf("store: unknown kind %q (valid: memory, sqlite)", cfg.Store.Kind)
	}

	for name, provider := range cfg.Providers {
		if err := provider.validate(); err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
	}

	seen := make(map[string]bool, len(cfg.Locations))

	for _, location := range cfg.Locations {
		if location.Name == "" {
			return fmt.Errorf("location without a name")
		}

		if seen[location.Name] {
			return fmt.Errorf("location %q: duplicate name", location.Name)
		}

		seen[location.Name] = true

		if _, ok := cfg.Providers[location.Provider]; !ok {
			return fmt.Errorf("location %q: unknown provider %q", location.Name, location.Provider)
		}

		switch location.RateLimit {
		case "", "high", "medium", "low":
		default:
			return fmt.Errorf("location %q: unknown rate limit %q (valid: high, medium, low)", location.Name, location.RateLimit)
		}

		for _, processor := range location.Processors {
			if err := processor.validate(cfg); err != nil {
				return fmt.Errorf("location %q: %w", location.Name, err)
			}
		}
	}

	return nil
}

// validate checks one provider entry.
func (p ProviderConfig) validate() error {
	switch p.Kind {
	case "memory":
	case "local":
		if p.Root == "" {
			return fmt.Errorf("local provider requires a root")
		}
	case "sftp":
		if p.Host == "" || p.User == "" {
			return fmt.Errorf("sftp provider requires host and user")
		}
	default:
		return fmt.Errorf("unknown kind %q (valid: local, memory, sftp)", p.Kind)
	}

	switch strings.ToLower(p.Lifetime) {
	case "", "singleton", "transient":
	default:
		return fmt.Errorf("unknown lifetime %q (valid: singleton, transient)", p.Lifetime)
	}

	for _, behavior := range p.Behaviors {
		switch behavior {
		case "logging", "caching", "retry":
		default:
			return fmt.Errorf("unknown behavior %q (valid: logging, caching, retry)", behavior)
		}
	}

	return nil
}

// validate checks one processor entry against the provider table.
func (p ProcessorConfig) validate(cfg *Config) error {
	switch p.Type {
	case "log":
		return nil
	case "archive":
		if _, ok := cfg.Providers[p.ArchiveProvider]; !ok {
			return fmt.Errorf("archive processor: unknown provider %q", p.ArchiveProvider)
		}

		return nil
	default:
		return fmt.Errorf("unknown processor %q (valid: log, archive)", p.Type)
	}
}
