package users

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	engine := NewEngine("secret", "hearthkeep", "hearthkeep-api", time.Minute, time.Hour, "")
	return NewManager(store, engine, zerolog.Nop())
}

func TestLoginSuccessAndFailure(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateUser("alice", "Str0ngPass!", nil)
	require.NoError(t, err)

	tok, err := m.Login("alice", "Str0ngPass!")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)

	_, err = m.Login("alice", "wrong-password")
	assert.Error(t, err)

	_, err = m.Login("nobody", "whatever12")
	assert.Error(t, err, "unknown user must fail the same way as a wrong password")
}

func TestRefreshRotatesNonceAndIsSingleUse(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateUser("bob", "Str0ngPass!", nil)
	require.NoError(t, err)
	tok, err := m.Login("bob", "Str0ngPass!")
	require.NoError(t, err)

	refreshed, err := m.Refresh(tok.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = m.Refresh(tok.RefreshToken)
	assert.Error(t, err, "a used refresh token must not be replayable")
}

func TestChangePasswordRevokesOldTokens(t *testing.T) {
	m := newTestManager(t)
	u, err := m.CreateUser("carol", "Str0ngPass!", nil)
	require.NoError(t, err)
	tok, err := m.Login("carol", "Str0ngPass!")
	require.NoError(t, err)

	_, claims, err := m.VerifyToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)

	require.NoError(t, m.ChangePassword(u.ID, "NewStr0ngPass!"))

	_, _, err = m.VerifyToken(tok.AccessToken)
	assert.Error(t, err, "token issued before the password change must be stale now")
}

func TestServicePermissionRoundTrip(t *testing.T) {
	m := newTestManager(t)
	u, err := m.CreateUser("dave", "Str0ngPass!", nil)
	require.NoError(t, err)

	require.NoError(t, m.AddServicePermission(u.ID, "svc-a"))
	loaded, err := m.LoadUser(u.ID)
	require.NoError(t, err)
	assert.True(t, loaded.HasService("svc-a"))

	require.NoError(t, m.RemoveServicePermission(u.ID, "svc-a"))
	loaded, err = m.LoadUser(u.ID)
	require.NoError(t, err)
	assert.False(t, loaded.HasService("svc-a"))
}

func TestDevClaimsAreNeverUserType(t *testing.T) {
	dev := DevClaims()
	assert.Equal(t, TokenDev, dev.TokenType)
	assert.NotEqual(t, TokenUser, dev.TokenType)
}
