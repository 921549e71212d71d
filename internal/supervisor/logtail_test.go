package supervisor

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailRawMissingLogIsEmptyNotError(t *testing.T) {
	sm, err := NewServiceManager(t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "true"}))

	data, err := sm.TailRaw("svc1", 1024)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestTailRawReturnsTrailingBytes(t *testing.T) {
	sm, err := NewServiceManager(t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "true"}))

	require.NoError(t, os.WriteFile(sm.store.LogPath("svc1"), []byte("0123456789"), 0o644))
	data, err := sm.TailRaw("svc1", 4)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(data))
}

func TestFollowRawWithoutHandleReturnsBacklogOnly(t *testing.T) {
	sm, err := NewServiceManager(t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "true"}))
	require.NoError(t, os.WriteFile(sm.store.LogPath("svc1"), []byte("backlog"), 0o644))

	backlog, sub, err := sm.FollowRaw("svc1")
	require.NoError(t, err)
	assert.Equal(t, "backlog", string(backlog))
	assert.Nil(t, sub)
}

func TestTailRawUnknownServiceIsNotFound(t *testing.T) {
	sm, err := NewServiceManager(t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)
	_, err = sm.TailRaw("nope", 10)
	assert.Error(t, err)
}
