package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// ManifestStore is the durable per-service JSON record + groups index
// (spec.md §4.1, component A).
type ManifestStore struct {
	dataDir string

	// groupsMu serializes groups.json reads/writes; the manifest directory
	// itself needs no such lock because each service has its own file and
	// concurrent per-id operations on different ids don't conflict. Per-id
	// races (e.g. two concurrent update(id) calls) are accepted as
	// caller-serialized, matching the teacher's best-effort whole-file
	// rewrite model.
	groupsMu sync.Mutex
}

// NewManifestStore creates the on-disk layout under dataDir if missing.
func NewManifestStore(dataDir string) (*ManifestStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "services"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "users"), 0o755); err != nil {
		return nil, err
	}
	ms := &ManifestStore{dataDir: dataDir}
	groupsPath := filepath.Join(dataDir, "groups.json")
	if _, err := os.Stat(groupsPath); os.IsNotExist(err) {
		if err := os.WriteFile(groupsPath, []byte("[]"), 0o644); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

func (ms *ManifestStore) serviceDir(id string) string {
	return filepath.Join(ms.dataDir, "services", id)
}

func (ms *ManifestStore) manifestPath(id string) string {
	return filepath.Join(ms.serviceDir(id), "service.json")
}

// PidPath returns the path of the cross-process liveness pidfile.
func (ms *ManifestStore) PidPath(id string) string {
	return filepath.Join(ms.serviceDir(id), "runtime", "pid")
}

// LogPath returns the path of the rolling on-disk log file.
func (ms *ManifestStore) LogPath(id string) string {
	return filepath.Join(ms.serviceDir(id), "logs", "latest.log")
}

// Create persists a brand-new manifest. Fails with AlreadyExists if the
// manifest file is already present.
func (ms *ManifestStore) Create(m Manifest) error {
	if !validID(m.ID) {
		return apierr.InvalidIDf("invalid service id: " + m.ID)
	}
	path := ms.manifestPath(m.ID)
	if _, err := os.Stat(path); err == nil {
		return apierr.AlreadyExistsf(m.ID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Join(ms.serviceDir(m.ID), "runtime"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(ms.serviceDir(m.ID), "logs"), 0o755); err != nil {
		return err
	}
	return ms.writeManifest(m)
}

// Load reads the manifest for id, returning NotFound if absent or Serde on
// malformed JSON (the store tolerates partial files by surfacing a typed
// deserialization error rather than panicking).
func (ms *ManifestStore) Load(id string) (Manifest, error) {
	data, err := os.ReadFile(ms.manifestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, apierr.NotFoundf(id)
		}
		return Manifest{}, apierr.Wrap(apierr.IO, id, "read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, apierr.Wrap(apierr.Serde, id, "malformed manifest json", err)
	}
	return m, nil
}

// Update rewrites the manifest for id. The body's ID must equal id; the
// existing CreatedAt is preserved when the caller's body omits it.
func (ms *ManifestStore) Update(id string, m Manifest) error {
	if m.ID != "" && m.ID != id {
		return apierr.InvalidIDf("body id " + m.ID + " does not match path id " + id)
	}
	existing, err := ms.Load(id)
	if err != nil {
		return err
	}
	m.ID = id
	if m.CreatedAt.IsZero() {
		m.CreatedAt = existing.CreatedAt
	}
	return ms.writeManifest(m)
}

// Delete removes a service's manifest and on-disk state. Callers are
// responsible for refusing this while the service is Running (spec.md §4.1
// assigns that check to the Lifecycle Engine, which holds the registry
// lock needed to answer status() authoritatively).
func (ms *ManifestStore) Delete(id string) error {
	if _, err := ms.Load(id); err != nil {
		return err
	}
	return os.RemoveAll(ms.serviceDir(id))
}

// List reads every manifest directory concurrently. Order is unspecified;
// callers sort by (group, order, id) for display.
func (ms *ManifestStore) List() ([]Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(ms.dataDir, "services"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.IO, "", "list services", err)
	}

	type result struct {
		m   Manifest
		err error
	}
	results := make(chan result, len(entries))
	var wg sync.WaitGroup
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m, err := ms.Load(id)
			results <- result{m: m, err: err}
		}(e.Name())
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var out []Manifest
	for r := range results {
		if r.err != nil {
			continue // malformed/partial manifest: skip, don't fail the whole list
		}
		out = append(out, r.m)
	}
	return out, nil
}

// SortForDisplay orders manifests by (group, order, id) as spec.md §4.1
// instructs callers of list() to do.
func SortForDisplay(ms []Manifest) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Group != ms[j].Group {
			return ms[i].Group < ms[j].Group
		}
		if ms[i].Order != ms[j].Order {
			return ms[i].Order < ms[j].Order
		}
		return ms[i].ID < ms[j].ID
	})
}

func (ms *ManifestStore) writeManifest(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apierr.Wrap(apierr.Serde, m.ID, "marshal manifest", err)
	}
	if err := os.MkdirAll(ms.serviceDir(m.ID), 0o755); err != nil {
		return err
	}
	return os.WriteFile(ms.manifestPath(m.ID), data, 0o644)
}

// ─── Groups ────────────────────────────────────────────────────────────────

func (ms *ManifestStore) groupsPath() string {
	return filepath.Join(ms.dataDir, "groups.json")
}

func (ms *ManifestStore) readGroups() ([]Group, error) {
	data, err := os.ReadFile(ms.groupsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var groups []Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, apierr.Wrap(apierr.Serde, "", "malformed groups.json", err)
	}
	return groups, nil
}

func (ms *ManifestStore) writeGroups(groups []Group) error {
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ms.groupsPath(), data, 0o644)
}

// ListGroups returns the flat groups.json array.
func (ms *ManifestStore) ListGroups() ([]Group, error) {
	ms.groupsMu.Lock()
	defer ms.groupsMu.Unlock()
	return ms.readGroups()
}

// CreateGroup appends a new group, failing with AlreadyExists on id collision.
func (ms *ManifestStore) CreateGroup(g Group) error {
	ms.groupsMu.Lock()
	defer ms.groupsMu.Unlock()
	groups, err := ms.readGroups()
	if err != nil {
		return err
	}
	for _, existing := range groups {
		if existing.ID == g.ID {
			return apierr.AlreadyExistsf(g.ID)
		}
	}
	groups = append(groups, g)
	return ms.writeGroups(groups)
}

// UpdateGroup rewrites an existing group's fields in place.
func (ms *ManifestStore) UpdateGroup(g Group) error {
	ms.groupsMu.Lock()
	defer ms.groupsMu.Unlock()
	groups, err := ms.readGroups()
	if err != nil {
		return err
	}
	for i, existing := range groups {
		if existing.ID == g.ID {
			groups[i] = g
			return ms.writeGroups(groups)
		}
	}
	return apierr.NotFoundf(g.ID)
}

// DeleteGroup removes a group by id. Member services are detached (their
// Group field cleared) rather than deleted; the caller (ServiceManager)
// applies that detachment since it owns manifest rewrites for other ids.
func (ms *ManifestStore) DeleteGroup(id string) error {
	ms.groupsMu.Lock()
	defer ms.groupsMu.Unlock()
	groups, err := ms.readGroups()
	if err != nil {
		return err
	}
	out := groups[:0]
	found := false
	for _, g := range groups {
		if g.ID == id {
			found = true
			continue
		}
		out = append(out, g)
	}
	if !found {
		return apierr.NotFoundf(id)
	}
	return ms.writeGroups(out)
}

// ReorderGroups reassigns order = index in the given id sequence; unknown
// ids are ignored.
func (ms *ManifestStore) ReorderGroups(ids []string) error {
	ms.groupsMu.Lock()
	defer ms.groupsMu.Unlock()
	groups, err := ms.readGroups()
	if err != nil {
		return err
	}
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	for i := range groups {
		if idx, ok := order[groups[i].ID]; ok {
			groups[i].Order = idx
		}
	}
	return ms.writeGroups(groups)
}
