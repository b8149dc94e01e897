// Package config loads per-corpus settings from .es6config.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the corpus root.
const FileName = ".es6config"

// Config holds user-overridable converter settings.
type Config struct {
	// Roots are entry-point files, relative to the corpus root.
	Roots []string `yaml:"roots"`
	// RootNamespaces are entry points named by a provided namespace.
	RootNamespaces []string `yaml:"root_namespaces"`

	// IncludeTests adds the test files of selected files as extra roots.
	// Default: false.
	IncludeTests *bool `yaml:"include_tests"`

	// Exclude are glob patterns for files that must not be selected.
	Exclude []string `yaml:"exclude"`

	// TestSuffixes replace the default "_test.js" convention.
	TestSuffixes []string `yaml:"test_suffixes"`

	// IgnoreDirs are added to the built-in discovery ignore list.
	IgnoreDirs []string `yaml:"ignore_dirs"`

	// Cache enables the SQLite scan cache. Default: true.
	Cache *bool `yaml:"cache"`
	// CachePath overrides the cache database location.
	CachePath string `yaml:"cache_path"`

	// Workers bounds parallel scanning. Default: number of CPUs.
	Workers *int `yaml:"workers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads .es6config from the given directory.
// Returns default config if the file doesn't exist or does not parse.
func LoadConfig(dir string) *Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig()
	}

	return cfg
}

// EffectiveIncludeTests returns the configured test inclusion, or false.
func (c *Config) EffectiveIncludeTests() bool {
	if c.IncludeTests != nil {
		return *c.IncludeTests
	}
	return false
}

// EffectiveCache returns whether the scan cache is enabled (default true).
func (c *Config) EffectiveCache() bool {
	if c.Cache != nil {
		return *c.Cache
	}
	return true
}

// EffectiveWorkers returns the configured worker count, or def when unset
// or not positive.
func (c *Config) EffectiveWorkers(def int) int {
	if c.Workers != nil && *c.Workers > 0 {
		return *c.Workers
	}
	return def
}
