package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManifestStore(t *testing.T) *ManifestStore {
	t.Helper()
	ms, err := NewManifestStore(t.TempDir())
	require.NoError(t, err)
	return ms
}

func TestManifestCreateLoadUpdateDelete(t *testing.T) {
	ms := newTestManifestStore(t)

	require.NoError(t, ms.Create(Manifest{ID: "svc1", Command: "true"}))
	err := ms.Create(Manifest{ID: "svc1", Command: "true"})
	assert.Error(t, err, "duplicate id must be rejected")

	loaded, err := ms.Load("svc1")
	require.NoError(t, err)
	assert.Equal(t, "true", loaded.Command)

	loaded.Command = "false"
	require.NoError(t, ms.Update("svc1", loaded))
	reloaded, err := ms.Load("svc1")
	require.NoError(t, err)
	assert.Equal(t, "false", reloaded.Command)

	require.NoError(t, ms.Delete("svc1"))
	_, err = ms.Load("svc1")
	assert.Error(t, err)
}

func TestManifestCreateRejectsInvalidID(t *testing.T) {
	ms := newTestManifestStore(t)
	err := ms.Create(Manifest{ID: "bad id!", Command: "true"})
	assert.Error(t, err)
}

func TestManifestUpdatePreservesCreatedAt(t *testing.T) {
	ms := newTestManifestStore(t)
	require.NoError(t, ms.Create(Manifest{ID: "svc1", Command: "true"}))
	original, err := ms.Load("svc1")
	require.NoError(t, err)

	require.NoError(t, ms.Update("svc1", Manifest{ID: "svc1", Command: "false"}))
	updated, err := ms.Load("svc1")
	require.NoError(t, err)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
}

func TestManifestListSkipsMalformedEntries(t *testing.T) {
	ms := newTestManifestStore(t)
	require.NoError(t, ms.Create(Manifest{ID: "svc1", Command: "true"}))
	require.NoError(t, ms.Create(Manifest{ID: "svc2", Command: "true"}))
	require.NoError(t, os.MkdirAll(ms.serviceDir("broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ms.serviceDir("broken"), "service.json"), []byte("{not json"), 0o644))

	list, err := ms.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGroupCRUD(t *testing.T) {
	ms := newTestManifestStore(t)
	require.NoError(t, ms.CreateGroup(Group{ID: "g1", Name: "Group 1"}))
	err := ms.CreateGroup(Group{ID: "g1", Name: "dup"})
	assert.Error(t, err)

	require.NoError(t, ms.UpdateGroup(Group{ID: "g1", Name: "Renamed"}))
	groups, err := ms.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Renamed", groups[0].Name)

	require.NoError(t, ms.DeleteGroup("g1"))
	groups, err = ms.ListGroups()
	require.NoError(t, err)
	assert.Len(t, groups, 0)
}

func TestSortForDisplay(t *testing.T) {
	ms := []Manifest{
		{ID: "c", Group: "b", Order: 0},
		{ID: "a", Group: "a", Order: 1},
		{ID: "b", Group: "a", Order: 0},
	}
	SortForDisplay(ms)
	assert.Equal(t, []string{"b", "a", "c"}, []string{ms[0].ID, ms[1].ID, ms[2].ID})
}
