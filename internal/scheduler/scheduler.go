// Package scheduler is the cron-driven timer that invokes Lifecycle Engine
// actions on a schedule (spec.md §4.8, component H). It depends on
// internal/supervisor; the dependency is strictly one-directional — the
// Lifecycle Engine never calls back into the scheduler.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nilsaker/hearthkeep/internal/apierr"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
)

// cronParser accepts the 6-field "sec min hour day month weekday" form
// spec.md §3 requires for a Schedule's cron expression.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ServiceScheduler maps service id → single cron entry, backed by one
// robfig/cron engine shared across all services.
type ServiceScheduler struct {
	mgr *supervisor.ServiceManager
	log zerolog.Logger
	c   *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewServiceScheduler wires a scheduler on top of an already-constructed
// ServiceManager (spec.md §9 "construct the manager first, then pass it").
func NewServiceScheduler(mgr *supervisor.ServiceManager, log zerolog.Logger) *ServiceScheduler {
	return &ServiceScheduler{
		mgr:     mgr,
		log:     log,
		c:       cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins the engine's background dispatch loop.
func (s *ServiceScheduler) Start() { s.c.Start() }

// Stop halts the engine, waiting for any in-flight fire to finish.
func (s *ServiceScheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}

// ValidateCron reports whether expr parses as a 6-field cron expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return apierr.InvalidSchedulef(err.Error())
	}
	return nil
}

// NextRun returns the next UTC fire time for expr.
func NextRun(expr string) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, apierr.InvalidSchedulef(err.Error())
	}
	return sched.Next(time.Now().UTC()), nil
}

// NextRuns returns the next n UTC fire times for expr.
func NextRuns(expr string, n int) ([]time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, apierr.InvalidSchedulef(err.Error())
	}
	out := make([]time.Time, 0, n)
	from := time.Now().UTC()
	for i := 0; i < n; i++ {
		from = sched.Next(from)
		out = append(out, from)
	}
	return out, nil
}

// Upsert cancels any previous task for id, then — if the schedule is
// enabled with a non-empty cron expression — installs a new one.
func (s *ServiceScheduler) Upsert(id string, sch supervisor.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.c.Remove(entryID)
		delete(s.entries, id)
	}
	if !sch.Enabled || sch.Cron == "" {
		return nil
	}
	if _, err := cronParser.Parse(sch.Cron); err != nil {
		return apierr.InvalidSchedulef(err.Error())
	}

	action := sch.Action
	entryID, err := s.c.AddFunc(sch.Cron, func() { s.fire(id, action) })
	if err != nil {
		return apierr.InvalidSchedulef(err.Error())
	}
	s.entries[id] = entryID
	return nil
}

// Remove cancels id's task; a no-op if none is installed.
func (s *ServiceScheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.c.Remove(entryID)
		delete(s.entries, id)
	}
}

// ReloadAll walks every manifest and upserts its schedule; a single
// service's failure is logged and does not stop the walk.
func (s *ServiceScheduler) ReloadAll() {
	views, err := s.mgr.ListServices()
	if err != nil {
		s.log.Warn().Err(err).Msg("schedule reload: list services failed")
		return
	}
	for _, v := range views {
		if v.Manifest.Schedule == nil {
			s.Remove(v.Manifest.ID)
			continue
		}
		if err := s.Upsert(v.Manifest.ID, *v.Manifest.Schedule); err != nil {
			s.log.Warn().Err(err).Str("service_id", v.Manifest.ID).Msg("schedule upsert failed")
		}
	}
}

// fire invokes the configured action. All calls go through the Lifecycle
// Engine, which serialises on the registry lock — the scheduler never races
// with a concurrent operator-initiated start/stop.
func (s *ServiceScheduler) fire(id string, action supervisor.ScheduleAction) {
	st, err := s.mgr.Status(id)
	if err != nil {
		s.log.Warn().Err(err).Str("service_id", id).Msg("schedule fire: status failed")
		return
	}

	var opErr error
	switch action {
	case supervisor.ActionStart:
		if st.State == supervisor.Stopped {
			_, opErr = s.mgr.Start(id)
		}
	case supervisor.ActionStop:
		if st.State == supervisor.Running {
			opErr = s.mgr.Stop(id)
		}
	case supervisor.ActionRestart:
		_, opErr = s.mgr.Restart(id)
	}
	if opErr != nil {
		s.log.Warn().Err(opErr).Str("service_id", id).Str("action", string(action)).Msg("scheduled action failed")
	}
}
