// Package config loads and persists the evalsync tool configuration.
//
// Configuration lives in a YAML file, by default .evalsync/config.yaml in the
// working directory. Every field has a usable default so a missing file is
// not an error; command-line flags override whatever the file supplies.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = ".evalsync/config.yaml"

// Config holds the evalsync tool configuration loaded from YAML.
type Config struct {
	// DataDir is the root of the evaluation tree.
	// Default: "data"
	DataDir string `yaml:"data_dir"`

	// OutputDir receives generated markdown and CSV summaries.
	// Default: "output"
	OutputDir string `yaml:"output_dir"`

	// LedgerPath is the SQLite sync ledger location.
	// Default: ".evalsync/ledger.db"
	LedgerPath string `yaml:"ledger_path"`

	// Layout fixes the tree orientation ("year-first" or "person-first").
	// Default: "" (auto-detect)
	Layout string `yaml:"layout,omitempty"`

	// Model selects the scoring model ("nps" or "legacy").
	// Default: "nps"
	Model string `yaml:"model"`

	// Normalize adds the 0-100 scale view to NPS scores.
	// Default: true
	Normalize bool `yaml:"normalize"`

	// Workers bounds the sync worker pool. Zero uses one worker per CPU.
	// Range: 0-256
	Workers int `yaml:"workers"`

	// BatchSize caps in-flight units per dispatch wave. Zero dispatches
	// everything as a single wave.
	BatchSize int `yaml:"batch_size"`

	// IgnoreErrors keeps a sync running past per-unit fatal faults instead
	// of aborting on the first one.
	// Default: false
	IgnoreErrors bool `yaml:"ignore_errors"`

	// Watch tunes watch mode.
	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig tunes how watch mode reacts to filesystem changes.
type WatchConfig struct {
	// Debounce is how long the tree must stay quiet before a re-sync
	// fires, e.g. "2s".
	// Default: "2s"
	Debounce string `yaml:"debounce"`

	// MaxPerMinute rate-limits re-syncs regardless of change volume.
	// Range: 1-600
	// Default: 12
	MaxPerMinute int `yaml:"max_per_minute"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		DataDir:    "data",
		OutputDir:  "output",
		LedgerPath: ".evalsync/ledger.db",
		Layout:     "",
		Model:      string(types.ModelNPS),
		Normalize:  true,
		Workers:    0,
		BatchSize:  0,
		Watch: WatchConfig{
			Debounce:     "2s",
			MaxPerMinute: 12,
		},
	}
}

// Load reads the configuration at path, falling back to defaults when the
// file does not exist. Values present in the file override defaults;
// omitted values keep them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks all fields for consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path must not be empty")
	}
	if _, err := types.ParseModel(c.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if _, err := structure.ParseOrientation(c.Layout); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if c.Workers < 0 || c.Workers > 256 {
		return fmt.Errorf("workers must be between 0 and 256, got %d", c.Workers)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize)
	}
	if c.Watch.Debounce != "" {
		d, err := time.ParseDuration(c.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("watch.debounce must not be negative, got %s", d)
		}
	}
	if c.Watch.MaxPerMinute < 1 || c.Watch.MaxPerMinute > 600 {
		return fmt.Errorf("watch.max_per_minute must be between 1 and 600, got %d", c.Watch.MaxPerMinute)
	}
	return nil
}

// ScoringModel returns the parsed scoring model. Call Validate first; an
// unparseable selector falls back to the default model here.
func (c *Config) ScoringModel() types.Model {
	m, err := types.ParseModel(c.Model)
	if err != nil {
		return types.ModelNPS
	}
	return m
}

// Orientation returns the parsed tree layout. Call Validate first; an
// unparseable selector falls back to auto-detection here.
func (c *Config) Orientation() structure.Orientation {
	o, err := structure.ParseOrientation(c.Layout)
	if err != nil {
		return structure.OrientationAuto
	}
	return o
}

// DebounceDuration returns the parsed watch debounce window.
func (w WatchConfig) DebounceDuration() time.Duration {
	if w.Debounce == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}
