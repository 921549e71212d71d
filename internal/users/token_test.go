package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return NewEngine("test-secret", "hearthkeep", "hearthkeep-api", time.Minute, time.Hour, "dev-secret-0123456789abcdef01234567")
}

func TestIssuePairAndParse(t *testing.T) {
	e := testEngine()
	u := User{ID: "u1", Username: "alice", TokenVersion: 1, RefreshNonce: "nonce-1"}

	pair, err := e.IssuePair(u)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := e.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, TokenUser, claims.TokenType)
	assert.Equal(t, "u1", claims.Subject)

	refreshClaims, err := e.Parse(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenRefresh, refreshClaims.TokenType)
	assert.Equal(t, "nonce-1", refreshClaims.RefreshNonce)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	e := testEngine()
	other := NewEngine("test-secret", "someone-else", "hearthkeep-api", time.Minute, time.Hour, "")
	tok, _, err := other.issue(User{ID: "u1"}, TokenUser, time.Minute)
	require.NoError(t, err)

	_, err = e.Parse(tok)
	assert.Error(t, err)
}

func TestIsDevToken(t *testing.T) {
	e := testEngine()
	assert.True(t, e.IsDevToken("dev-secret-0123456789abcdef01234567"))
	assert.False(t, e.IsDevToken("wrong-secret-0123456789abcdef0123"))
	assert.False(t, e.IsDevToken("too-short"))
}

func TestIsDevTokenEmptyConfiguredSecretNeverMatches(t *testing.T) {
	e := NewEngine("test-secret", "hearthkeep", "hearthkeep-api", time.Minute, time.Hour, "")
	assert.False(t, e.IsDevToken("anything-at-all-0123456789abcdef"))
}
