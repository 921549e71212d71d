package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// Manager is the User Store & Token Engine's public entrypoint — the
// UserManager named throughout spec.md §4.9.
type Manager struct {
	store  *Store
	engine *Engine
	log    zerolog.Logger
}

func NewManager(store *Store, engine *Engine, log zerolog.Logger) *Manager {
	return &Manager{store: store, engine: engine, log: log}
}

// CreateUser validates the password policy, hashes it, and persists a new
// account with a fresh refresh_nonce.
func (m *Manager) CreateUser(username, password string, serviceIDs []string) (User, error) {
	if err := validatePasswordPolicy(password); err != nil {
		return User{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return User{}, apierr.Wrap(apierr.Other, username, "hash password", err)
	}
	u := User{
		Username:     username,
		PasswordHash: hash,
		ServiceIDs:   serviceIDs,
		RefreshNonce: uuid.NewString(),
	}
	return m.store.Create(u)
}

func (m *Manager) LoadUser(id string) (User, error) { return m.store.Load(id) }

func (m *Manager) ListUsers() ([]User, error) { return m.store.List() }

// Login verifies credentials and issues a fresh token pair. The unknown-
// user path runs a fake bcrypt verify so it costs the same as a genuine
// password mismatch (spec.md §9).
func (m *Manager) Login(username, password string) (AuthToken, error) {
	u, err := m.store.FindByUsername(username)
	if err != nil {
		fakeVerify()
		return AuthToken{}, apierr.Unauthorizedf("invalid credentials")
	}
	if !verifyPassword(u.PasswordHash, password) {
		return AuthToken{}, apierr.Unauthorizedf("invalid credentials")
	}

	u.RefreshNonce = uuid.NewString()
	if err := m.store.Update(u); err != nil {
		return AuthToken{}, err
	}
	return m.engine.IssuePair(u)
}

// Refresh verifies a refresh token's signature, type, version, and nonce,
// then rotates the nonce and re-issues both tokens. Single-use: a second
// call with the same token fails because the nonce no longer matches.
func (m *Manager) Refresh(refreshToken string) (AuthToken, error) {
	claims, err := m.engine.Parse(refreshToken)
	if err != nil {
		return AuthToken{}, apierr.Unauthorizedf("invalid refresh token")
	}
	if claims.TokenType != TokenRefresh {
		return AuthToken{}, apierr.Unauthorizedf("invalid refresh token")
	}
	u, err := m.store.Load(claims.Subject)
	if err != nil {
		return AuthToken{}, apierr.Unauthorizedf("invalid refresh token")
	}
	if claims.TokenVersion != u.TokenVersion || claims.RefreshNonce != u.RefreshNonce {
		return AuthToken{}, apierr.Unauthorizedf("invalid refresh token")
	}

	u.RefreshNonce = uuid.NewString()
	if err := m.store.Update(u); err != nil {
		return AuthToken{}, err
	}
	return m.engine.IssuePair(u)
}

// VerifyToken is the auth middleware's core check: structural validity,
// non-dev, non-stale token_version. Returns the live User record so
// handlers can consult current service_ids rather than the token's
// (possibly outdated) snapshot.
func (m *Manager) VerifyToken(token string) (User, *Claims, error) {
	claims, err := m.engine.Parse(token)
	if err != nil {
		return User{}, nil, apierr.Unauthorizedf("invalid token")
	}
	if claims.TokenType == TokenDev {
		return User{}, nil, apierr.Unauthorizedf("invalid token")
	}
	if claims.TokenType != TokenUser {
		return User{}, nil, apierr.Unauthorizedf("invalid token")
	}
	u, err := m.store.Load(claims.Subject)
	if err != nil {
		return User{}, nil, apierr.Unauthorizedf("invalid token")
	}
	if claims.TokenVersion != u.TokenVersion {
		return User{}, nil, apierr.Unauthorizedf("invalid token")
	}
	return u, claims, nil
}

// IsDevToken reports whether bearer is the pre-shared admin secret.
func (m *Manager) IsDevToken(bearer string) bool { return m.engine.IsDevToken(bearer) }

// bumpRevocation increments token_version and rotates refresh_nonce —
// every credential or permission mutation routes through this so all
// outstanding tokens for the user are invalidated at once.
func (m *Manager) bumpRevocation(u *User) {
	u.TokenVersion++
	u.RefreshNonce = uuid.NewString()
	u.UpdatedAt = time.Now().UTC()
}

// ChangePassword validates the new password, re-hashes it, and bumps the
// revocation counters.
func (m *Manager) ChangePassword(id, newPassword string) error {
	if err := validatePasswordPolicy(newPassword); err != nil {
		return err
	}
	u, err := m.store.Load(id)
	if err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return apierr.Wrap(apierr.Other, id, "hash password", err)
	}
	u.PasswordHash = hash
	m.bumpRevocation(&u)
	return m.store.Update(u)
}

// UpdateUser rewrites service_ids (and nothing else) and bumps revocation,
// since permission scope is part of what a token attests.
func (m *Manager) UpdateUser(id string, serviceIDs []string) error {
	u, err := m.store.Load(id)
	if err != nil {
		return err
	}
	u.ServiceIDs = serviceIDs
	m.bumpRevocation(&u)
	return m.store.Update(u)
}

func (m *Manager) AddServicePermission(id, serviceID string) error {
	u, err := m.store.Load(id)
	if err != nil {
		return err
	}
	if !u.HasService(serviceID) {
		u.ServiceIDs = append(u.ServiceIDs, serviceID)
	}
	m.bumpRevocation(&u)
	return m.store.Update(u)
}

func (m *Manager) RemoveServicePermission(id, serviceID string) error {
	u, err := m.store.Load(id)
	if err != nil {
		return err
	}
	kept := u.ServiceIDs[:0]
	for _, s := range u.ServiceIDs {
		if s != serviceID {
			kept = append(kept, s)
		}
	}
	u.ServiceIDs = kept
	m.bumpRevocation(&u)
	return m.store.Update(u)
}
