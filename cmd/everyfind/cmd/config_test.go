package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateConfig points the user config dir at a temp directory so tests
// never touch the real config file.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "everyfind", "config.yaml")
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestConfigPathCmd(t *testing.T) {
	cfgPath := isolateConfig(t)

	out, _, err := runCommand(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, cfgPath, strings.TrimSpace(out))
}

func TestConfigShowCmd_DefaultsWithoutFile(t *testing.T) {
	isolateConfig(t)

	out, _, err := runCommand(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "context_lines: 5")
	assert.Contains(t, out, "cpu_threshold: 80")
	assert.Contains(t, out, "max_line_length: 200")
}

func TestConfigInitCmd(t *testing.T) {
	cfgPath := isolateConfig(t)

	out, _, err := runCommand(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, cfgPath)
	require.FileExists(t, cfgPath)

	// Second init without --force refuses to overwrite.
	_, _, err = runCommand(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = runCommand(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigShowCmd_ReadsExistingFile(t *testing.T) {
	cfgPath := isolateConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfgPath), 0o755))
	require.NoError(t, os.WriteFile(cfgPath, []byte("search:\n  context_lines: 9\n"), 0o644))

	out, _, err := runCommand(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "context_lines: 9")
}
