// Package supervisor implements the core process-supervision engine:
// the Manifest Store, Policy Gate, PTY Runtime, I/O Fan-out, Process
// Registry, Lifecycle Engine, and Log Tailer from spec.md §4.1-4.7.
//
// Like the teacher daemon package, this is one cohesive package split by
// concern across several files rather than one-package-per-component.
package supervisor

import "time"

// State is one of the three lifecycle states from spec.md §3.
type State string

const (
	Running State = "Running"
	Stopped State = "Stopped"
	Unknown State = "Unknown"
)

// ScheduleAction names the action a cron firing performs (spec.md §4.8).
type ScheduleAction string

const (
	ActionStart   ScheduleAction = "start"
	ActionRestart ScheduleAction = "restart"
	ActionStop    ScheduleAction = "stop"
)

// Schedule is the cron-driven automation attached to a service.
type Schedule struct {
	Enabled  bool           `json:"enabled"`
	Cron     string         `json:"cron"`
	Action   ScheduleAction `json:"action"`
	Timezone string         `json:"timezone,omitempty"`
}

// Manifest is the durable, on-disk definition of a service (spec.md §3).
type Manifest struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Command          string            `json:"command"`
	Args             []string          `json:"args,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	Cwd              string            `json:"cwd,omitempty"`
	AutoStart        bool              `json:"auto_start"`
	AutoRestart      bool              `json:"auto_restart"`
	ClearLogOnStart  bool              `json:"clear_log_on_start"`
	ShutdownCommand  string            `json:"shutdown_command,omitempty"`
	RunAs            string            `json:"run_as,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Group            string            `json:"group,omitempty"`
	Order            int               `json:"order"`
	LogPath          string            `json:"log_path,omitempty"`
	Schedule         *Schedule         `json:"schedule,omitempty"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
}

// Group is a named, ordered bucket of services (spec.md §3).
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Color string `json:"color,omitempty"`
}

// Status is the point-in-time view returned by status(id) and embedded in
// list() results.
type Status struct {
	ID    string `json:"id"`
	State State  `json:"state"`
	PID   int    `json:"pid,omitempty"`
}

// ServiceView joins a Manifest with its current Status for list() callers.
type ServiceView struct {
	Manifest Manifest `json:"manifest"`
	Status   Status   `json:"status"`
}

// validID enforces the id charset from spec.md §3: [A-Za-z0-9._-], non-empty.
func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
