package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "stackd.toml")
	content := `
log_dir = "` + filepath.Join(dir, "logs") + `"

[backend]
command = "sleep 1"

[frontend]
command = "sleep 1"
`
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "status", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "stackd")
}

func TestStatusStoppedStack(t *testing.T) {
	cfg := writeTestConfig(t)
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"status", "--config", cfg})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "backend")
	assert.Contains(t, out.String(), "stopped")
	assert.Contains(t, out.String(), "frontend")
}

func TestRunMissingConfigFails(t *testing.T) {
	root := buildRoot()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, root.Execute())
}
