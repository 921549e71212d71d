package users

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// TokenType distinguishes the three claim shapes spec.md §3 defines.
type TokenType string

const (
	TokenUser    TokenType = "user"
	TokenRefresh TokenType = "refresh"
	TokenDev     TokenType = "dev"
)

// Claims is the token engine's claim set. dev tokens are synthesized
// in-process and never pass through Engine.issue/Engine.Parse.
type Claims struct {
	Username     string    `json:"username"`
	TokenType    TokenType `json:"token_type"`
	ServiceIDs   []string  `json:"service_ids,omitempty"`
	TokenVersion uint64    `json:"token_version"`
	RefreshNonce string    `json:"refresh_nonce,omitempty"`
	jwt.RegisteredClaims
}

// AuthToken is what login/refresh hand back to a caller.
type AuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Engine issues and verifies HS256 tokens and recognises the dev secret.
type Engine struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	devToken   string
}

func NewEngine(secret, issuer, audience string, accessTTL, refreshTTL time.Duration, devToken string) *Engine {
	return &Engine{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		devToken:   devToken,
	}
}

func (e *Engine) issue(u User, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Username:     u.Username,
		TokenType:    tokenType,
		TokenVersion: u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    e.issuer,
			Audience:  jwt.ClaimStrings{e.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if tokenType == TokenRefresh {
		claims.RefreshNonce = u.RefreshNonce
	} else {
		claims.ServiceIDs = u.ServiceIDs
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(e.secret)
	return signed, exp, err
}

// IssuePair issues a fresh access+refresh pair for u (login / refresh).
func (e *Engine) IssuePair(u User) (AuthToken, error) {
	access, exp, err := e.issue(u, TokenUser, e.accessTTL)
	if err != nil {
		return AuthToken{}, apierr.Wrap(apierr.Other, u.ID, "sign access token", err)
	}
	refresh, _, err := e.issue(u, TokenRefresh, e.refreshTTL)
	if err != nil {
		return AuthToken{}, apierr.Wrap(apierr.Other, u.ID, "sign refresh token", err)
	}
	return AuthToken{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(exp.Sub(time.Now().UTC()).Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Parse verifies signature, issuer, and audience, returning the claims.
// It does not check token_version/refresh_nonce revocation — callers
// compare those against the live User record themselves.
func (e *Engine) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.secret, nil
	}, jwt.WithIssuer(e.issuer), jwt.WithAudience(e.audience))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// IsDevToken reports whether bearer matches the pre-shared dev secret. An
// empty configured secret, a bearer shorter than 32 characters, or a length
// mismatch is rejected up front; equal-length values are compared in
// constant time.
func (e *Engine) IsDevToken(bearer string) bool {
	if e.devToken == "" || len(bearer) < 32 || len(bearer) != len(e.devToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(bearer), []byte(e.devToken)) == 1
}

// DevClaims is the synthetic claim set granted for the dev secret — never
// signed, never persisted, never refreshable.
func DevClaims() Claims {
	return Claims{
		Username:  "dev",
		TokenType: TokenDev,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "dev",
		},
	}
}
