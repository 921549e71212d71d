// Package httpapi is the thin HTTP/WebSocket adapter over the core engine
// (spec.md §6): every route maps to exactly one core call, and this
// package's only job is transport — decoding requests, mapping apierr.Kind
// to a status code, and encoding responses.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/nilsaker/hearthkeep/internal/metrics"
	"github.com/nilsaker/hearthkeep/internal/ratelimit"
	"github.com/nilsaker/hearthkeep/internal/scheduler"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
	"github.com/nilsaker/hearthkeep/internal/users"
)

// Deps wires every core component the handlers call into. Constructed once
// at startup and shared by every request.
type Deps struct {
	Manager     *supervisor.ServiceManager
	Scheduler   *scheduler.ServiceScheduler
	Users       *users.Manager
	Log         zerolog.Logger
	CORSOrigins []string

	LoginLimiter   *ratelimit.Limiter
	RefreshLimiter *ratelimit.Limiter
}

// publicPaths are exempt from the auth middleware (spec.md §6).
var publicPaths = map[string]bool{
	"/health":        true,
	"/auth/login":    true,
	"/auth/refresh":  true,
}

// NewRouter builds the full chi mux: global middleware, then one
// route group per HTTP-surface row of spec.md §6.
func NewRouter(d *Deps) http.Handler {
	h := &handler{d: d}

	r := chi.NewRouter()

	// ========================
	// Global middleware stack
	// ========================
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOriginsOrWildcard(d.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.InstrumentHandler)

	// ========================
	// Public endpoints
	// ========================
	r.Get("/health", h.health)
	r.With(rateLimited(d.LoginLimiter, "login")).Post("/auth/login", h.login)
	r.With(rateLimited(d.RefreshLimiter, "refresh")).Post("/auth/refresh", h.refresh)

	// ========================
	// Authenticated API
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(d))

		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.listServices)
			r.Post("/", h.createService)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getService)
				r.Put("/", h.updateService)
				r.Delete("/", h.deleteService)

				r.Get("/status", h.status)
				r.Post("/start", h.start)
				r.Post("/stop", h.stop)
				r.Post("/shutdown", h.shutdown)
				r.Post("/kill", h.kill)
				r.Post("/restart", h.restart)

				r.Get("/logs", h.logs)
				r.Get("/attach", h.attach)

				r.Get("/schedule", h.getSchedule)
				r.Put("/schedule", h.putSchedule)
			})
		})

		r.Post("/schedule/validate", h.validateSchedule)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.listGroups)
			r.Post("/", h.createGroup)
			r.Put("/{id}", h.updateGroup)
			r.Delete("/{id}", h.deleteGroup)
			r.Post("/reorder", h.reorderGroups)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Get("/{id}", h.getUser)
			r.Put("/{id}", h.updateUser)
			r.Post("/{id}/password", h.changePassword)
		})

		r.Get("/stats/overview", h.statsOverview)
		r.Get("/stats/system", h.statsSystem)
	})

	return r
}

func corsOriginsOrWildcard(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
