// Package config loads and validates the annostore configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the complete annostore configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Index       IndexConfig       `yaml:"index"`
	Propagation PropagationConfig `yaml:"propagation"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StoreConfig configures the primary store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite". The memory backend is rebuildable
	// from the index; sqlite persists the store itself.
	Backend string `yaml:"backend"`

	// DataDir holds on-disk state (sqlite database, index, logs).
	DataDir string `yaml:"data_dir"`
}

// IndexConfig configures the search index.
type IndexConfig struct {
	// Path is the on-disk index location. Empty means in-memory, which is
	// only useful for tests and throwaway sessions.
	Path string `yaml:"path"`
}

// PropagationConfig bounds the dependent sweep.
type PropagationConfig struct {
	// MaxDepth bounds chain resolution and the breadth-first sweep.
	MaxDepth int `yaml:"max_depth"`

	// Workers is the concurrency of the dependent sweep.
	Workers int `yaml:"workers"`
}

// RetryConfig configures retries of dependent-set queries against the
// eventually consistent index. Delays are duration strings ("100ms", "2s").
type RetryConfig struct {
	MaxRetries   int     `yaml:"max_retries"`
	InitialDelay string  `yaml:"initial_delay"`
	MaxDelay     string  `yaml:"max_delay"`
	Multiplier   float64 `yaml:"multiplier"`
	Jitter       bool    `yaml:"jitter"`
}

// Delays parses the configured delay strings.
func (r RetryConfig) Delays() (initial, max time.Duration, err error) {
	initial, err = time.ParseDuration(r.InitialDelay)
	if err != nil {
		return 0, 0, fmt.Errorf("retry.initial_delay: %w", err)
	}
	max, err = time.ParseDuration(r.MaxDelay)
	if err != nil {
		return 0, 0, fmt.Errorf("retry.max_delay: %w", err)
	}
	return initial, max, nil
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendMemory,
			DataDir: defaultDataDir(),
		},
		Index: IndexConfig{},
		Propagation: PropagationConfig{
			MaxDepth: 16,
			Workers:  4,
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: "100ms",
			MaxDelay:     "2s",
			Multiplier:   2.0,
			Jitter:       true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path, layered over defaults, and applies
// environment overrides. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies ANNOSTORE_* environment variables, which take
// precedence over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANNOSTORE_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("ANNOSTORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want %q or %q)",
			c.Store.Backend, BackendMemory, BackendSQLite)
	}
	if c.Store.Backend == BackendSQLite && c.Store.DataDir == "" {
		return fmt.Errorf("sqlite backend requires store.data_dir")
	}
	if c.Propagation.MaxDepth <= 0 {
		return fmt.Errorf("propagation.max_depth must be positive, got %d", c.Propagation.MaxDepth)
	}
	if c.Propagation.Workers <= 0 {
		return fmt.Errorf("propagation.workers must be positive, got %d", c.Propagation.Workers)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if _, _, err := c.Retry.Delays(); err != nil {
		return err
	}
	return nil
}

// StorePath returns the sqlite database path under the data dir.
func (c *Config) StorePath() string {
	return filepath.Join(c.Store.DataDir, "annostore.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".annostore"
	}
	return filepath.Join(home, ".annostore")
}
