package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/creack/pty"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// ptyRows/ptyCols are the fixed PTY dimensions spec.md §4.3 mandates.
const (
	ptyRows = 300
	ptyCols = 155
)

// spawnedProcess bundles together everything the Lifecycle Engine needs
// after a successful spawn.
type spawnedProcess struct {
	cmd *exec.Cmd
	ptm *os.File
	pid int
}

// spawn starts the manifest's command inside a fresh pseudo-terminal.
// Environment is exactly the manifest's env map (the supervisor's own
// environment is NOT inherited). Working directory is the manifest's cwd
// if present, else the parent process's cwd. On POSIX, a non-empty RunAs
// wraps the command in a privilege-switching invocation equivalent to
// `sudo -u <user> <command> <args...>`; on other platforms RunAs is ignored.
func spawn(m Manifest) (*spawnedProcess, error) {
	name, args := m.Command, append([]string{}, m.Args...)
	if m.RunAs != "" && runtime.GOOS != "windows" {
		args = append([]string{"-u", m.RunAs, name}, args...)
		name = "sudo"
	}

	if m.Cwd != "" {
		if _, err := os.Stat(m.Cwd); err != nil {
			return nil, apierr.Wrap(apierr.SpawnFailed, m.ID, fmt.Sprintf("working directory not found: %s", m.Cwd), err)
		}
	}

	cmd := exec.Command(name, args...)
	if m.Cwd != "" {
		cmd.Dir = m.Cwd
	}
	cmd.Env = envSlice(m.Env)

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})
	if err != nil {
		return nil, apierr.Wrap(apierr.SpawnFailed, m.ID, err.Error(), err)
	}

	return &spawnedProcess{cmd: cmd, ptm: ptm, pid: cmd.Process.Pid}, nil
}

// envSlice converts the manifest's env map into a "K=V" slice. Insertion
// order is irrelevant per spec.md §3, so map iteration order is fine.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
