package supervisor

import (
	"path/filepath"
	"strings"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// PolicyGate validates a manifest's command and working directory against
// the supervisor-wide allow-lists (spec.md §4.2, component B).
type PolicyGate struct {
	// AllowedCommands is the set of permitted command basenames, or nil for
	// wildcard (any command permitted).
	AllowedCommands map[string]struct{}
	// AllowedCwdRoots is the list of permitted cwd roots; a single literal
	// "*" means wildcard.
	AllowedCwdRoots []string
	// DataDir is always an implicitly-allowed cwd root.
	DataDir string
}

func (p *PolicyGate) cwdIsWildcard() bool {
	return len(p.AllowedCwdRoots) == 1 && p.AllowedCwdRoots[0] == "*"
}

// Check enforces the command/cwd rules on create, update, and start.
func (p *PolicyGate) Check(m Manifest) error {
	if p.AllowedCommands != nil {
		base := filepath.Base(m.Command)
		if _, ok := p.AllowedCommands[base]; !ok {
			return apierr.PolicyViolationf("command %q is not in the allowed-commands list", base)
		}
	}

	if m.Cwd == "" || p.cwdIsWildcard() {
		return nil
	}

	abs, err := filepath.Abs(m.Cwd)
	if err != nil {
		return apierr.PolicyViolationf("cannot resolve cwd %q: %v", m.Cwd, err)
	}
	abs = filepath.Clean(abs)

	if p.DataDir != "" {
		if dataAbs, err := filepath.Abs(p.DataDir); err == nil && underRoot(abs, filepath.Clean(dataAbs)) {
			return nil
		}
	}
	for _, root := range p.AllowedCwdRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if underRoot(abs, filepath.Clean(rootAbs)) {
			return nil
		}
	}
	return apierr.PolicyViolationf("cwd %q is not under an allowed root", m.Cwd)
}

// underRoot reports whether path is root itself or a descendant of it.
func underRoot(path, root string) bool {
	if path == root {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, strings.TrimSuffix(root, sep)+sep)
}
