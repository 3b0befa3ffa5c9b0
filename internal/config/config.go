// Package config loads subcheck configuration from .subcheck/config.yaml,
// merging file values over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig controls the check-run history database.
type HistoryConfig struct {
	// Enabled records every check run in the history database.
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database file.
	DBPath string `yaml:"db_path"`

	// KeepRuns caps how many runs are retained per assignment (0 = unlimited).
	KeepRuns int `yaml:"keep_runs"`
}

// Config represents subcheck configuration options.
type Config struct {
	// SpecBaseURL is the base URL assignment structure documents are
	// fetched from.
	SpecBaseURL string `yaml:"spec_base_url"`

	// FallbackBranches are tried in order when a submission repository has
	// no marking branch.
	FallbackBranches []string `yaml:"fallback_branches"`

	// IgnorePatterns are glob patterns for unexpected files that should not
	// be reported (editor droppings, OS metadata).
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// FetchTimeout bounds a single structure-document download.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// KeepScratch leaves the extraction workspace on disk after a check,
	// for inspection.
	KeepScratch bool `yaml:"keep_scratch"`

	// Color controls report colouring: auto, always or never.
	Color string `yaml:"color"`

	// History contains check-run history configuration.
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		SpecBaseURL:      "",
		FallbackBranches: []string{"master"},
		IgnorePatterns:   []string{".DS_Store", "__MACOSX", "__pycache__", "*.pyc"},
		FetchTimeout:     30 * time.Second,
		KeepScratch:      false,
		Color:            "auto",
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   ".subcheck/history.db",
			KeepRuns: 200,
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings, so parse into an intermediate shape.
	type yamlConfig struct {
		SpecBaseURL      string        `yaml:"spec_base_url"`
		FallbackBranches []string      `yaml:"fallback_branches"`
		IgnorePatterns   []string      `yaml:"ignore_patterns"`
		FetchTimeout     string        `yaml:"fetch_timeout"`
		KeepScratch      bool          `yaml:"keep_scratch"`
		Color            string        `yaml:"color"`
		History          HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.SpecBaseURL != "" {
		cfg.SpecBaseURL = yamlCfg.SpecBaseURL
	}
	if yamlCfg.FallbackBranches != nil {
		cfg.FallbackBranches = yamlCfg.FallbackBranches
	}
	if yamlCfg.IgnorePatterns != nil {
		cfg.IgnorePatterns = yamlCfg.IgnorePatterns
	}
	if yamlCfg.FetchTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid fetch_timeout format %q: %w", yamlCfg.FetchTimeout, err)
		}
		cfg.FetchTimeout = timeout
	}
	if yamlCfg.KeepScratch {
		cfg.KeepScratch = yamlCfg.KeepScratch
	}
	if yamlCfg.Color != "" {
		cfg.Color = yamlCfg.Color
	}

	// The history section merges field by field so a partial section keeps
	// the remaining defaults. A raw unmarshal tells us which keys were
	// actually present.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if historySection, exists := rawMap["history"]; exists && historySection != nil {
			history := yamlCfg.History
			historyMap, _ := historySection.(map[string]interface{})

			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = history.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				cfg.History.DBPath = history.DBPath
			}
			if _, exists := historyMap["keep_runs"]; exists {
				cfg.History.KeepRuns = history.KeepRuns
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .subcheck/config.yaml in the
// specified directory. If the directory or file doesn't exist, returns
// default configuration without error.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".subcheck", "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values, so flags take precedence over the
// config file.
func (c *Config) MergeWithFlags(specBaseURL *string, keepScratch *bool, color *string) {
	if specBaseURL != nil {
		c.SpecBaseURL = *specBaseURL
	}
	if keepScratch != nil {
		c.KeepScratch = *keepScratch
	}
	if color != nil {
		c.Color = *color
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	validColor := map[string]bool{
		"auto":   true,
		"always": true,
		"never":  true,
	}
	if !validColor[c.Color] {
		return fmt.Errorf("invalid color %q, must be one of: auto, always, never", c.Color)
	}

	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must be >= 0, got %v", c.FetchTimeout)
	}

	for _, branch := range c.FallbackBranches {
		if branch == "" {
			return fmt.Errorf("fallback_branches must not contain empty names")
		}
	}

	if c.History.Enabled {
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path cannot be empty when history is enabled")
		}
		if c.History.KeepRuns < 0 {
			return fmt.Errorf("history.keep_runs must be >= 0, got %d", c.History.KeepRuns)
		}
	}

	return nil
}
