package supervisor

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

func newTestServiceManager(t *testing.T) *ServiceManager {
	t.Helper()
	sm, err := NewServiceManager(t.TempDir(), nil, zerolog.Nop())
	require.NoError(t, err)
	return sm
}

func TestStartStatusKill(t *testing.T) {
	sm := newTestServiceManager(t)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "/bin/sh", Args: []string{"-c", "sleep 30"}}))

	st, err := sm.Start("svc1")
	require.NoError(t, err)
	assert.Equal(t, Running, st.State)
	assert.NotZero(t, st.PID)

	st, err = sm.Status("svc1")
	require.NoError(t, err)
	assert.Equal(t, Running, st.State)

	_, err = sm.Start("svc1")
	assert.Error(t, err, "starting an already-running service must fail")

	require.NoError(t, sm.Kill("svc1"))
	st, err = sm.Status("svc1")
	require.NoError(t, err)
	assert.Equal(t, Stopped, st.State)
}

func TestStartImmediateExitIsSpawnFailed(t *testing.T) {
	sm := newTestServiceManager(t)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "/bin/true"}))

	_, err := sm.Start("svc1")
	assert.Error(t, err, "a process that exits before spawnSettle elapses should surface as a failure")
}

func TestStartMissingCwdIsSpawnFailedWithMessage(t *testing.T) {
	sm := newTestServiceManager(t)
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "/bin/true", Cwd: missing}))

	_, err := sm.Start("svc1")
	require.Error(t, err)
	assert.Equal(t, apierr.SpawnFailed, apierr.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "working directory not found"), "got: %s", err.Error())
}

func TestDeleteRefusesWhileRunning(t *testing.T) {
	sm := newTestServiceManager(t)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "/bin/sh", Args: []string{"-c", "sleep 30"}}))
	_, err := sm.Start("svc1")
	require.NoError(t, err)
	defer sm.Kill("svc1")

	err = sm.DeleteService("svc1")
	assert.Error(t, err)
}

func TestAttachRequiresRunning(t *testing.T) {
	sm := newTestServiceManager(t)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "/bin/sh", Args: []string{"-c", "sleep 30"}}))

	_, err := sm.Attach("svc1")
	assert.Error(t, err, "attach before start should fail")

	_, err = sm.Start("svc1")
	require.NoError(t, err)
	defer sm.Kill("svc1")

	ah, err := sm.Attach("svc1")
	require.NoError(t, err)
	assert.NotZero(t, ah.PID)
	assert.NotNil(t, ah.Input)
	assert.NotNil(t, ah.Output)
}

func TestRestartCyclesThePID(t *testing.T) {
	sm := newTestServiceManager(t)
	require.NoError(t, sm.CreateService(Manifest{ID: "svc1", Command: "/bin/sh", Args: []string{"-c", "sleep 30"}}))

	st, err := sm.Start("svc1")
	require.NoError(t, err)
	firstPID := st.PID
	defer sm.Kill("svc1")

	st, err = sm.Restart("svc1")
	require.NoError(t, err)
	assert.Equal(t, Running, st.State)
	assert.NotEqual(t, firstPID, st.PID, "restart should spawn a fresh process")
}

func TestAutoRestartRespawnsAfterExit(t *testing.T) {
	sm := newTestServiceManager(t)
	require.NoError(t, sm.CreateService(Manifest{
		ID:          "svc1",
		Command:     "/bin/sh",
		Args:        []string{"-c", "sleep 1"},
		AutoRestart: true,
	}))

	st, err := sm.Start("svc1")
	require.NoError(t, err)
	firstPID := st.PID
	defer sm.Kill("svc1")

	require.Eventually(t, func() bool {
		st, err := sm.Status("svc1")
		return err == nil && st.State == Running && st.PID != 0 && st.PID != firstPID
	}, 5*time.Second, 50*time.Millisecond, "auto_restart should bring the service back with a new PID")
}
