// Package config loads the lump command-line configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvPath overrides the config file location.
const EnvPath = "LUMP_CONFIG"

// Config is the on-disk CLI configuration.
type Config struct {
	// CacheDir holds cached entry bodies for remote archives. Empty
	// disables the cache.
	CacheDir      string `yaml:"cache_dir"`
	CacheMaxBytes int64  `yaml:"cache_max_bytes"`

	// RulesFile extends the bundled entry-type rules.
	RulesFile string `yaml:"rules_file"`

	LoadPolicy      string `yaml:"load_policy"`
	LoadConcurrency int    `yaml:"load_concurrency"`

	Backup BackupConfig `yaml:"backup"`
}

// BackupConfig controls save-time snapshots.
type BackupConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	KeepLast    int    `yaml:"keep_last"`
	Compression string `yaml:"compression"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		CacheDir:        filepath.Join("~", ".lump", "cache"),
		CacheMaxBytes:   256 << 20,
		LoadPolicy:      "deferred",
		LoadConcurrency: 4,
		Backup: BackupConfig{
			Enabled:     true,
			Dir:         filepath.Join("~", ".lump", "backups"),
			KeepLast:    10,
			Compression: "zstd",
		},
	}
}

// Path returns the config file location: $LUMP_CONFIG if set, otherwise
// ~/.lump/config.yaml.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".lump", "config.yaml")
}

// Load reads the config at Path.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path. A missing file yields the defaults;
// fields absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // user config path
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.LoadPolicy {
	case "", "deferred", "eager":
	default:
		return fmt.Errorf("load_policy %q: want deferred or eager", c.LoadPolicy)
	}
	switch c.Backup.Compression {
	case "", "zstd", "lz4", "none":
	default:
		return fmt.Errorf("backup.compression %q: want zstd, lz4 or none", c.Backup.Compression)
	}
	if c.CacheMaxBytes < 0 {
		return errors.New("cache_max_bytes is negative")
	}
	return nil
}

// Save writes the config to Path.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if path == "~" || (len(path) > 1 && path[0] == '~' && os.IsPathSeparator(path[1])) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
