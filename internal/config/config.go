// Package config loads and validates the everyfind configuration file.
//
// Configuration is resolved once per invocation: defaults, then the user
// config file, then CLI flags (applied by the cmd layer). The resulting
// Config is immutable for the duration of a run and shared by reference
// across all components.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the complete everyfind configuration.
type Config struct {
	Search      SearchConfig      `yaml:"search"`
	Performance PerformanceConfig `yaml:"performance"`
	Exclude     ExcludeConfig     `yaml:"exclude"`
	Display     DisplayConfig     `yaml:"display"`
}

// SearchConfig configures search behavior.
type SearchConfig struct {
	// DefaultSearchPath is used when no path argument is given.
	DefaultSearchPath string `yaml:"default_search_path"`

	// ContextLines is the number of lines shown before and after a match.
	ContextLines int `yaml:"context_lines"`

	// RespectGitignore applies .gitignore rules during enumeration.
	RespectGitignore bool `yaml:"respect_gitignore"`
}

// PerformanceConfig configures the worker pool and CPU throttling.
type PerformanceConfig struct {
	// CPUThreshold is the CPU usage percentage above which work
	// admission is delayed.
	CPUThreshold float64 `yaml:"cpu_threshold"`

	// SearchDelayMS is the admission delay in milliseconds applied
	// while the CPU is above the threshold.
	SearchDelayMS int `yaml:"search_delay_ms"`

	// SampleIntervalMS is the CPU sampling interval in milliseconds.
	SampleIntervalMS int `yaml:"sample_interval_ms"`

	// Workers is the worker pool size. Zero means runtime.NumCPU().
	Workers int `yaml:"workers"`
}

// ExcludeConfig configures enumeration exclusions.
type ExcludeConfig struct {
	// DefaultDirs are directory names pruned during traversal
	// (exact, case-sensitive match).
	DefaultDirs []string `yaml:"default_dirs"`

	// DefaultFiles are file names skipped during traversal.
	DefaultFiles []string `yaml:"default_files"`
}

// DisplayConfig configures result rendering.
type DisplayConfig struct {
	// MaxLineLength truncates displayed lines beyond this length.
	// Truncation never affects match detection.
	MaxLineLength int `yaml:"max_line_length"`

	// HighlightMatches colorizes the matched span.
	HighlightMatches bool `yaml:"highlight_matches"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			DefaultSearchPath: ".",
			ContextLines:      5,
			RespectGitignore:  false,
		},
		Performance: PerformanceConfig{
			CPUThreshold:     80.0,
			SearchDelayMS:    100,
			SampleIntervalMS: 1000,
			Workers:          0,
		},
		Exclude: ExcludeConfig{
			DefaultDirs:  []string{".git", "node_modules", "target", ".vscode", ".idea"},
			DefaultFiles: []string{},
		},
		Display: DisplayConfig{
			MaxLineLength:    200,
			HighlightMatches: true,
		},
	}
}

// WorkerCount resolves the configured pool size, defaulting to the
// number of available CPUs.
func (c *Config) WorkerCount() int {
	if c.Performance.Workers > 0 {
		return c.Performance.Workers
	}
	return runtime.NumCPU()
}

// UserConfigPath returns the path of the user configuration file,
// following the XDG base directory convention.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "everyfind", "config.yaml"), nil
}

// Load reads the configuration from path. Missing fields keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrCreate loads the config at path, writing a default config file
// on first run. The created flag reports whether a new file was written.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(statErr) {
		return nil, false, fmt.Errorf("failed to stat config file: %w", statErr)
	}

	cfg = Default()
	if err := cfg.Write(path); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Write serializes the configuration to path, creating parent
// directories as needed.
func (c *Config) Write(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks configuration value ranges.
func (c *Config) Validate() error {
	if c.Search.ContextLines < 0 || c.Search.ContextLines > 50 {
		return fmt.Errorf("context_lines must be between 0 and 50, got %d", c.Search.ContextLines)
	}
	if c.Performance.CPUThreshold < 10.0 || c.Performance.CPUThreshold > 100.0 {
		return fmt.Errorf("cpu_threshold must be between 10 and 100, got %.1f", c.Performance.CPUThreshold)
	}
	if c.Performance.SearchDelayMS < 0 || c.Performance.SearchDelayMS > 10000 {
		return fmt.Errorf("search_delay_ms must be between 0 and 10000, got %d", c.Performance.SearchDelayMS)
	}
	if c.Performance.SampleIntervalMS <= 0 {
		return fmt.Errorf("sample_interval_ms must be positive, got %d", c.Performance.SampleIntervalMS)
	}
	if c.Display.MaxLineLength < 50 {
		return fmt.Errorf("max_line_length must be at least 50, got %d", c.Display.MaxLineLength)
	}
	return nil
}
