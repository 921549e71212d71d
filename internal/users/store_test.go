package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateAndLoad(t *testing.T) {
	s := newTestStore(t)
	u, err := s.Create(User{Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotZero(t, u.CreatedAt)

	loaded, err := s.Load(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Username)
}

func TestCreateDuplicateUsernameRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(User{Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = s.Create(User{Username: "alice", PasswordHash: "other"})
	assert.Error(t, err)
}

func TestFindByUsernameUsesIndex(t *testing.T) {
	s := newTestStore(t)
	u, err := s.Create(User{Username: "bob", PasswordHash: "hash"})
	require.NoError(t, err)

	found, err := s.FindByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestFindByUsernameSelfHealsStaleIndex(t *testing.T) {
	s := newTestStore(t)
	u, err := s.Create(User{Username: "carol", PasswordHash: "hash"})
	require.NoError(t, err)

	// Corrupt the index to simulate it falling out of sync with the
	// per-user files on disk.
	require.NoError(t, s.writeIndex(map[string]string{}))

	found, err := s.FindByUsername("carol")
	require.NoError(t, err, "should fall back to a directory scan")
	assert.Equal(t, u.ID, found.ID)

	idx, err := s.readIndex()
	require.NoError(t, err)
	assert.Equal(t, u.ID, idx["carol"], "index should have been rebuilt")
}

func TestUpdateRenamesIndexEntry(t *testing.T) {
	s := newTestStore(t)
	u, err := s.Create(User{Username: "dave", PasswordHash: "hash"})
	require.NoError(t, err)

	u.Username = "david"
	require.NoError(t, s.Update(u))

	_, err = s.FindByUsername("dave")
	assert.Error(t, err)
	found, err := s.FindByUsername("david")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestListSortedByUsername(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(User{Username: "zed", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = s.Create(User{Username: "amy", PasswordHash: "h"})
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "amy", list[0].Username)
	assert.Equal(t, "zed", list[1].Username)
}
