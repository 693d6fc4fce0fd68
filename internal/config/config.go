// Package config loads the studio configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the render and history engines.
type Config struct {
	// OpenSCADBinary is the engine executable; empty resolves
	// "openscad" from PATH.
	OpenSCADBinary string `yaml:"openscad_binary,omitempty"`

	// Backend names the default geometry backend ("manifold", "cgal").
	// Empty uses the engine default.
	Backend string `yaml:"backend,omitempty"`

	// CacheCapacity bounds the render cache (entries).
	CacheCapacity int `yaml:"cache_capacity,omitempty"`

	// HistoryLimit bounds the retained checkpoint list.
	HistoryLimit int `yaml:"history_limit,omitempty"`

	// ArchivePath is the SQLite checkpoint archive; empty disables
	// persistence.
	ArchivePath string `yaml:"archive_path,omitempty"`

	// PresetDir holds CUE parameter-preset files; empty disables
	// presets.
	PresetDir string `yaml:"preset_dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CacheCapacity: 50,
		HistoryLimit:  50,
	}
}

// Load reads and validates a YAML configuration file. Unknown fields are
// rejected so typos surface instead of silently falling back to defaults.
// Absent fields keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must be non-negative, got %d", c.CacheCapacity)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be non-negative, got %d", c.HistoryLimit)
	}
	return nil
}
