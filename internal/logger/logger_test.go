package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterUsesDirAndName(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	w, err := c.Writer("backend")
	require.NoError(t, err)
	require.NotNil(t, w)
	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(filepath.Join(dir, "backend.log"))
	require.NoError(t, err)
	require.Contains(t, string(b), "hello")
}

func TestWriterExplicitPathOverridesDir(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "custom", "out.log")
	c := Config{Dir: dir, Path: p}
	w, err := c.Writer("backend")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, err = os.Stat(p)
	require.NoError(t, err)
}

func TestWriterNilWhenUnconfigured(t *testing.T) {
	w, err := Config{}.Writer("backend")
	require.NoError(t, err)
	require.Nil(t, w)
}

func TestWriterAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	w1, err := c.Writer("svc")
	require.NoError(t, err)
	_, _ = w1.Write([]byte("first\n"))
	require.NoError(t, w1.Close())

	w2, err := c.Writer("svc")
	require.NoError(t, err)
	_, _ = w2.Write([]byte("second\n"))
	require.NoError(t, w2.Close())

	b, err := os.ReadFile(filepath.Join(dir, "svc.log"))
	require.NoError(t, err)
	require.Contains(t, string(b), "first")
	require.Contains(t, string(b), "second")
}
