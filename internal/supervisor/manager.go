package supervisor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nilsaker/hearthkeep/internal/apierr"
	"github.com/nilsaker/hearthkeep/internal/procutil"
)

// ServiceManager is the Lifecycle Engine (spec.md §4.6, component F),
// wired on top of the Manifest Store, Policy Gate, PTY Runtime, I/O
// Fan-out, and Process Registry. It is the single public entrypoint
// other core components (the scheduler, the HTTP adapter) call into.
type ServiceManager struct {
	dataDir  string
	store    *ManifestStore
	policy   *PolicyGate
	reg      *registry
	log      zerolog.Logger
	metrics  Metrics
	backoff  *restartBackoff

	// groupMu prevents the "delete group / detach services" sequence from
	// racing a concurrent service create/update that sets Group.
	groupMu sync.Mutex
}

// Option configures a ServiceManager at construction time.
type Option func(*ServiceManager)

// WithMetrics attaches a Metrics sink; defaults to a no-op implementation.
func WithMetrics(m Metrics) Option {
	return func(sm *ServiceManager) { sm.metrics = m }
}

// NewServiceManager wires the manifest store, policy gate, and registry
// into a ready-to-use Lifecycle Engine.
func NewServiceManager(dataDir string, policy *PolicyGate, log zerolog.Logger, opts ...Option) (*ServiceManager, error) {
	store, err := NewManifestStore(dataDir)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = &PolicyGate{DataDir: dataDir}
	}
	policy.DataDir = dataDir

	sm := &ServiceManager{
		dataDir: dataDir,
		store:   store,
		policy:  policy,
		reg:     newRegistry(),
		log:     log,
		metrics: nopMetrics{},
		backoff: newRestartBackoff(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm, nil
}

// ─── Manifest CRUD (delegates to the Manifest Store, adding policy + running checks) ──

// CreateService validates the manifest against the Policy Gate and persists
// it. clear_log_on_start defaults to true per spec.md §3; since a decoded
// zero-value Manifest can't distinguish "omitted" from "explicitly false",
// callers that accept partial external input (the HTTP adapter) are
// responsible for defaulting the field before calling in.
func (sm *ServiceManager) CreateService(m Manifest) error {
	if err := sm.policy.Check(m); err != nil {
		return err
	}
	return sm.store.Create(m)
}

// LoadService returns the manifest for id.
func (sm *ServiceManager) LoadService(id string) (Manifest, error) {
	return sm.store.Load(id)
}

// UpdateService validates and rewrites an existing manifest.
func (sm *ServiceManager) UpdateService(id string, m Manifest) error {
	if err := sm.policy.Check(m); err != nil {
		return err
	}
	return sm.store.Update(id, m)
}

// DeleteService refuses while the service is Running.
func (sm *ServiceManager) DeleteService(id string) error {
	st, err := sm.Status(id)
	if err != nil {
		return err
	}
	if st.State == Running {
		return apierr.AlreadyRunningf(id)
	}
	return sm.store.Delete(id)
}

// ListServices joins every manifest with a fresh status query.
func (sm *ServiceManager) ListServices() ([]ServiceView, error) {
	manifests, err := sm.store.List()
	if err != nil {
		return nil, err
	}
	views := make([]ServiceView, 0, len(manifests))
	for _, m := range manifests {
		st, err := sm.Status(m.ID)
		if err != nil {
			st = Status{ID: m.ID, State: Unknown}
		}
		views = append(views, ServiceView{Manifest: m, Status: st})
	}
	return views, nil
}

// ─── Groups ────────────────────────────────────────────────────────────────

func (sm *ServiceManager) ListGroups() ([]Group, error) { return sm.store.ListGroups() }

func (sm *ServiceManager) CreateGroup(g Group) error { return sm.store.CreateGroup(g) }

func (sm *ServiceManager) UpdateGroup(g Group) error { return sm.store.UpdateGroup(g) }

// DeleteGroup removes the group and detaches (does not delete) its members.
func (sm *ServiceManager) DeleteGroup(id string) error {
	sm.groupMu.Lock()
	defer sm.groupMu.Unlock()

	if err := sm.store.DeleteGroup(id); err != nil {
		return err
	}
	manifests, err := sm.store.List()
	if err != nil {
		return nil // group deletion already succeeded; detachment is best-effort
	}
	for _, m := range manifests {
		if m.Group == id {
			m.Group = ""
			_ = sm.store.Update(m.ID, m)
		}
	}
	return nil
}

func (sm *ServiceManager) ReorderGroups(ids []string) error { return sm.store.ReorderGroups(ids) }

// ─── Boot-time reconciliation ──────────────────────────────────────────────

// AutoStartSweep iterates services at supervisor boot and best-effort starts
// every one with AutoStart set that is currently Stopped (spec.md §4.6).
// It also reconciles any stale pidfile left by an unclean previous shutdown.
func (sm *ServiceManager) AutoStartSweep() {
	manifests, err := sm.store.List()
	if err != nil {
		sm.log.Warn().Err(err).Msg("auto-start sweep: list services failed")
		return
	}
	for _, m := range manifests {
		st, err := sm.Status(m.ID)
		if err != nil {
			continue
		}
		if m.AutoStart && st.State == Stopped {
			if _, err := sm.Start(m.ID); err != nil {
				sm.log.Warn().Err(err).Str("service_id", m.ID).Msg("auto-start failed")
			}
		}
	}
}

// ShutdownAll stops every Running service in parallel and waits up to
// timeout for all of them to become Stopped (spec.md §4.6 "Graceful
// shutdown of the supervisor").
func (sm *ServiceManager) ShutdownAll(timeout time.Duration) {
	manifests, err := sm.store.List()
	if err != nil {
		return
	}

	var wg sync.WaitGroup
	for _, m := range manifests {
		st, err := sm.Status(m.ID)
		if err != nil || st.State != Running {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = sm.Stop(id)
			sm.waitForStopped(id, timeout)
		}(m.ID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		sm.log.Warn().Msg("shutdown: timed out waiting for services to stop")
	}
}

// pidLiveWithCleanup checks pidfile liveness, deleting the file if stale, and
// is the one place §3's "any stale pidfile is deleted on discovery"
// invariant is enforced.
func (sm *ServiceManager) pidLiveWithCleanup(id string) (int, bool) {
	pid, ok := readPidFile(sm.store.PidPath(id))
	if !ok {
		return 0, false
	}
	if procutil.IsAlive(pid) {
		return pid, true
	}
	_ = removePidFile(sm.store.PidPath(id))
	return 0, false
}
