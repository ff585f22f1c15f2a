package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".", cfg.Search.DefaultSearchPath)
	assert.Equal(t, 5, cfg.Search.ContextLines)
	assert.False(t, cfg.Search.RespectGitignore)
	assert.Equal(t, 80.0, cfg.Performance.CPUThreshold)
	assert.Equal(t, 100, cfg.Performance.SearchDelayMS)
	assert.Contains(t, cfg.Exclude.DefaultDirs, ".git")
	assert.Equal(t, 200, cfg.Display.MaxLineLength)
	assert.True(t, cfg.Display.HighlightMatches)

	require.NoError(t, cfg.Validate())
}

func TestWorkerCount(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.WorkerCount(), 0)

	cfg.Performance.Workers = 3
	assert.Equal(t, 3, cfg.WorkerCount())
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "everyfind", "config.yaml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 5, cfg.Search.ContextLines)

	// Second call loads the existing file.
	cfg2, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cfg.Search.ContextLines, cfg2.Search.ContextLines)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "search:\n  context_lines: 2\nperformance:\n  cpu_threshold: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Search.ContextLines)
	assert.Equal(t, 50.0, cfg.Performance.CPUThreshold)
	// Untouched sections keep defaults.
	assert.Equal(t, 200, cfg.Display.MaxLineLength)
	assert.Contains(t, cfg.Exclude.DefaultDirs, "node_modules")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "context lines too large",
			mutate:  func(c *Config) { c.Search.ContextLines = 100 },
			wantErr: "context_lines",
		},
		{
			name:    "cpu threshold too low",
			mutate:  func(c *Config) { c.Performance.CPUThreshold = 5 },
			wantErr: "cpu_threshold",
		},
		{
			name:    "cpu threshold too high",
			mutate:  func(c *Config) { c.Performance.CPUThreshold = 150 },
			wantErr: "cpu_threshold",
		},
		{
			name:    "delay too large",
			mutate:  func(c *Config) { c.Performance.SearchDelayMS = 20000 },
			wantErr: "search_delay_ms",
		},
		{
			name:    "line length too small",
			mutate:  func(c *Config) { c.Display.MaxLineLength = 10 },
			wantErr: "max_line_length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "100", want: 100},
		{in: "1K", want: 1024},
		{in: "1k", want: 1024},
		{in: "2M", want: 2 * 1024 * 1024},
		{in: "1G", want: 1024 * 1024 * 1024},
		{in: "1.5K", want: 1536},
		{in: " 10K ", want: 10240},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
