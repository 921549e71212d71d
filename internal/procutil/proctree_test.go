package procutil

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAliveForCurrentProcess(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
}

func TestIsAliveForBogusPID(t *testing.T) {
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
}

func TestKillTreeAndWaitGone(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	KillTree(pid)
	gone := WaitGone(pid, 50*time.Millisecond, 2*time.Second)
	assert.True(t, gone)

	_ = cmd.Wait()
}

func TestSortIntsOrdersAscending(t *testing.T) {
	out := sortInts([]int{3, 1, 2})
	assert.Equal(t, []int{1, 2, 3}, out)
}
