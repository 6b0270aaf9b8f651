package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"latencyglobe/internal/validation"
)

const (
	DefaultListen           = ":8080"
	DefaultInterval         = 5 * time.Second
	DefaultClockInterval    = time.Second
	DefaultFetchTimeout     = 4 * time.Second
	DefaultFailureThreshold = 3
	DefaultBreakerFailures  = 5
	DefaultBreakerTimeout   = 30 * time.Second
	DefaultHistoryCap       = 4000
	DefaultSeedThreshold    = 5
	DefaultLogLevel         = "info"
)

// Config holds every section of the service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Poller  PollerConfig  `yaml:"poller"`
	History HistoryConfig `yaml:"history"`
	Random  RandomConfig  `yaml:"random"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig is used by the HTTP API.
type ServerConfig struct {
	Listen      string   `yaml:"listen" validate:"required,hostname_port"`
	CatalogPath string   `yaml:"catalog_path"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// PollerConfig controls the snapshot poll loop.
type PollerConfig struct {
	// Source is the base URL of a remote latency endpoint. Empty polls the
	// in-process fabricator.
	Source           string        `yaml:"source" validate:"omitempty,url"`
	Interval         time.Duration `yaml:"interval" validate:"gt=0"`
	ClockInterval    time.Duration `yaml:"clock_interval" validate:"gt=0"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	FailureThreshold int           `yaml:"failure_threshold" validate:"gte=1"`
	BreakerFailures  uint32        `yaml:"breaker_failures" validate:"gte=1"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
}

// HistoryConfig sizes the in-memory history.
type HistoryConfig struct {
	Cap           int `yaml:"cap" validate:"gte=1"`
	SeedThreshold int `yaml:"seed_threshold" validate:"gte=0"`
}

// RandomConfig seeds jitter. Zero seeds from the clock.
type RandomConfig struct {
	Seed int64 `yaml:"seed"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg Config) error {
	if err := validation.Struct(cfg); err != nil {
		return err
	}
	if cfg.History.SeedThreshold >= cfg.History.Cap {
		return fmt.Errorf("history.seed_threshold must be below history.cap")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}

	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = DefaultInterval
	}
	if cfg.Poller.ClockInterval == 0 {
		cfg.Poller.ClockInterval = DefaultClockInterval
	}
	if cfg.Poller.FetchTimeout == 0 {
		cfg.Poller.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Poller.FailureThreshold == 0 {
		cfg.Poller.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Poller.BreakerFailures == 0 {
		cfg.Poller.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.Poller.BreakerTimeout == 0 {
		cfg.Poller.BreakerTimeout = DefaultBreakerTimeout
	}

	if cfg.History.Cap == 0 {
		cfg.History.Cap = DefaultHistoryCap
	}
	if cfg.History.SeedThreshold == 0 {
		cfg.History.SeedThreshold = DefaultSeedThreshold
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
