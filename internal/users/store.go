// Package users implements the User Store & Token Engine (spec.md §4.9,
// component I): JSON-per-user persistence with a self-healing username
// index, bcrypt password hashing on a bounded worker pool, and JWT-like
// access/refresh/dev tokens with token_version + refresh_nonce revocation.
package users

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// User is the durable record for one account (spec.md §3).
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	ServiceIDs   []string  `json:"service_ids,omitempty"`
	TokenVersion uint64    `json:"token_version"`
	RefreshNonce string    `json:"refresh_nonce"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasService reports whether id is in the user's service allow-list.
func (u User) HasService(id string) bool {
	for _, s := range u.ServiceIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Store is the JSON-per-user durable layer plus its username→id index.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

// NewStore creates <dataDir>/users and seeds an empty index file if absent.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{dataDir: dataDir}
	if err := os.MkdirAll(s.usersDir(), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		if err := s.writeIndex(map[string]string{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) usersDir() string   { return filepath.Join(s.dataDir, "users") }
func (s *Store) userPath(id string) string { return filepath.Join(s.usersDir(), id+".json") }
func (s *Store) indexPath() string  { return filepath.Join(s.usersDir(), "index.json") }

// Create persists a new user, failing if the username is already taken.
func (s *Store) Create(u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findByUsernameLocked(u.Username); err == nil {
		return User{}, apierr.AlreadyExistsf(u.Username)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	if err := s.writeUser(u); err != nil {
		return User{}, err
	}
	idx, err := s.readIndex()
	if err != nil {
		idx = map[string]string{}
	}
	idx[u.Username] = u.ID
	if err := s.writeIndex(idx); err != nil {
		return User{}, err
	}
	return u, nil
}

// Load returns the user with the given id.
func (s *Store) Load(id string) (User, error) {
	data, err := os.ReadFile(s.userPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return User{}, apierr.NotFoundf(id)
		}
		return User{}, apierr.Wrap(apierr.IO, id, "read user", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, apierr.Wrap(apierr.Serde, id, "decode user", err)
	}
	return u, nil
}

// Update rewrites an existing user record and keeps the username index in
// sync if the username changed.
func (s *Store) Update(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.load(u.ID)
	if err != nil {
		return err
	}
	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	if err := s.writeUser(u); err != nil {
		return err
	}
	if prev.Username != u.Username {
		idx, err := s.readIndex()
		if err != nil {
			idx = map[string]string{}
		}
		delete(idx, prev.Username)
		idx[u.Username] = u.ID
		if err := s.writeIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load(id string) (User, error) { return s.Load(id) }

// FindByUsername checks the index first; on a miss (or a stale entry) it
// falls back to a one-shot directory scan and self-heals the index.
func (s *Store) FindByUsername(username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByUsernameLocked(username)
}

func (s *Store) findByUsernameLocked(username string) (User, error) {
	if idx, err := s.readIndex(); err == nil {
		if id, ok := idx[username]; ok {
			if u, err := s.Load(id); err == nil && u.Username == username {
				return u, nil
			}
		}
	}

	entries, err := os.ReadDir(s.usersDir())
	if err != nil {
		return User{}, apierr.NotFoundf(username)
	}
	rebuilt := map[string]string{}
	var found User
	ok := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == "index.json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		u, err := s.Load(id)
		if err != nil {
			continue
		}
		rebuilt[u.Username] = u.ID
		if u.Username == username {
			found, ok = u, true
		}
	}
	_ = s.writeIndex(rebuilt)
	if !ok {
		return User{}, apierr.NotFoundf(username)
	}
	return found, nil
}

// List returns every user, sorted by username.
func (s *Store) List() ([]User, error) {
	entries, err := os.ReadDir(s.usersDir())
	if err != nil {
		return nil, apierr.Wrap(apierr.IO, "", "list users", err)
	}
	out := make([]User, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == "index.json" {
			continue
		}
		u, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) writeUser(u User) error {
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return apierr.Wrap(apierr.Serde, u.ID, "encode user", err)
	}
	return os.WriteFile(s.userPath(u.ID), data, 0o600)
}

func (s *Store) readIndex() (map[string]string, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, err
	}
	idx := map[string]string{}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Store) writeIndex(idx map[string]string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0o600)
}
