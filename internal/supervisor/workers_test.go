package supervisor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingLogWriterAppendsBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc", "logs", "latest.log")
	w, err := newRollingLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("line one\n")))
	require.NoError(t, w.Write([]byte("line two\n")))
	w.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
}

func TestRollingLogWriterTruncatesPastMax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	w, err := newRollingLogWriter(path)
	require.NoError(t, err)

	// Drive past logMaxBytes directly via roll(), bypassing the ~10KiB
	// sampling cadence so the test doesn't need to write megabytes of data.
	filler := bytes.Repeat([]byte("x"), logMaxBytes+1024)
	filler[len(filler)-500] = '\n'
	require.NoError(t, os.WriteFile(path, filler, 0o644))
	require.NoError(t, w.roll())
	w.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), truncatedSentinel)
	assert.LessOrEqual(t, len(data), logRetainBytes+len(truncatedSentinel))
}

func TestTruncateLogEmptiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc", "logs", "latest.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale content"), 0o644))

	require.NoError(t, truncateLog(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestDescribeExit(t *testing.T) {
	assert.Equal(t, "status 0", describeExit(nil))
}
