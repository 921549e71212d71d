package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyGateWildcardAllowsEverything(t *testing.T) {
	p := &PolicyGate{AllowedCwdRoots: []string{"*"}}
	assert.NoError(t, p.Check(Manifest{Command: "anything", Cwd: "/tmp"}))
}

func TestPolicyGateRejectsDisallowedCommand(t *testing.T) {
	p := &PolicyGate{AllowedCommands: map[string]struct{}{"true": {}}}
	assert.NoError(t, p.Check(Manifest{Command: "/usr/bin/true"}))
	assert.Error(t, p.Check(Manifest{Command: "/usr/bin/false"}))
}

func TestPolicyGateRejectsCwdOutsideAllowedRoots(t *testing.T) {
	dir := t.TempDir()
	p := &PolicyGate{AllowedCwdRoots: []string{dir}}
	assert.NoError(t, p.Check(Manifest{Command: "true", Cwd: dir}))
	assert.Error(t, p.Check(Manifest{Command: "true", Cwd: "/etc"}))
}

func TestPolicyGateDataDirAlwaysAllowed(t *testing.T) {
	dir := t.TempDir()
	p := &PolicyGate{AllowedCwdRoots: []string{"/nonexistent-root"}, DataDir: dir}
	require.NoError(t, p.Check(Manifest{Command: "true", Cwd: dir}))
}
