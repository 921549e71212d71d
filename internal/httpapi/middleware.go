package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/nilsaker/hearthkeep/internal/metrics"
	"github.com/nilsaker/hearthkeep/internal/ratelimit"
	"github.com/nilsaker/hearthkeep/internal/users"
)

type ctxKey string

const (
	ctxKeyUser   ctxKey = "user"
	ctxKeyClaims ctxKey = "claims"
	ctxKeyDev    ctxKey = "is_dev"
)

// clientIP prefers X-Real-IP, then the first hop of X-Forwarded-For, then
// the socket's peer address (spec.md §6).
func clientIP(r *http.Request) string {
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return v
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		parts := strings.Split(v, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// rateLimited guards a single route with its own limiter, keyed by client
// IP, incrementing the rejection metric and returning TooManyRequests.
func rateLimited(l *ratelimit.Limiter, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				metrics.RecordRateLimitRejection(endpoint)
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header, else the
// ?token= query param (for WebSocket clients that can't set headers).
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	return r.URL.Query().Get("token")
}

// authMiddleware enforces spec.md §6's auth contract: dev-secret admission,
// otherwise token verification, with every failure mapped to a generic
// Unauthorized — no error-shape leakage to the client. Every failed attempt
// is checked against the auth-failure limiter via its atomic allow-or-reject
// path; once an IP trips it, further bad-bearer attempts get TooManyRequests
// instead of Unauthorized. A token that verifies is never limiter-checked.
func authMiddleware(d *Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				authFailure(w, d, clientIP(r))
				return
			}

			if d.Users.IsDevToken(token) {
				ctx := context.WithValue(r.Context(), ctxKeyDev, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			u, claims, err := d.Users.VerifyToken(token)
			if err != nil {
				authFailure(w, d, clientIP(r))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, u)
			ctx = context.WithValue(ctx, ctxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authFailure records a failed auth attempt against the auth-failure
// limiter and rejects the request: TooManyRequests once the limiter trips
// for this key, else the generic Unauthorized.
func authFailure(w http.ResponseWriter, d *Deps, ip string) {
	if !d.RefreshLimiter.Allow(ip) {
		metrics.RecordRateLimitRejection("auth")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func isDev(r *http.Request) bool {
	v, _ := r.Context().Value(ctxKeyDev).(bool)
	return v
}

func userFromCtx(r *http.Request) (users.User, bool) {
	u, ok := r.Context().Value(ctxKeyUser).(users.User)
	return u, ok
}

// allowedService reports whether the caller (dev or scoped user) may act on
// serviceID.
func allowedService(r *http.Request, serviceID string) bool {
	if isDev(r) {
		return true
	}
	u, ok := userFromCtx(r)
	return ok && u.HasService(serviceID)
}
