package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRemovePidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")

	_, ok := readPidFile(path)
	assert.False(t, ok, "missing pidfile should report not-ok")

	require.NoError(t, writePidFile(path, 4242))
	pid, ok := readPidFile(path)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)

	require.NoError(t, removePidFile(path))
	_, ok = readPidFile(path)
	assert.False(t, ok)
}

func TestReadPidFileToleratesWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	require.NoError(t, os.WriteFile(path, []byte("  123\n"), 0o644))
	pid, ok := readPidFile(path)
	require.True(t, ok)
	assert.Equal(t, 123, pid)
}

func TestReadPidFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	_, ok := readPidFile(path)
	assert.False(t, ok)
}

func TestRemovePidFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	assert.NoError(t, removePidFile(path), "removing an absent pidfile is not an error")
}
