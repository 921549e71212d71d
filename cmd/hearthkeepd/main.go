// hearthkeepd is the supervisor daemon: it loads configuration from the
// environment, wires the core engine (manifest store, policy gate,
// lifecycle engine, scheduler, user store) to the HTTP/WebSocket adapter,
// and serves until SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nilsaker/hearthkeep/internal/config"
	"github.com/nilsaker/hearthkeep/internal/httpapi"
	"github.com/nilsaker/hearthkeep/internal/logging"
	"github.com/nilsaker/hearthkeep/internal/metrics"
	"github.com/nilsaker/hearthkeep/internal/ratelimit"
	"github.com/nilsaker/hearthkeep/internal/scheduler"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
	"github.com/nilsaker/hearthkeep/internal/users"
)

const (
	loginRateLimit   = 10
	refreshRateLimit = 10
	rateLimitWindow  = 60 * time.Second

	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(os.Stderr, "info", isTTY())

	policy := &supervisor.PolicyGate{
		AllowedCommands: cfg.AllowedCommands(),
		AllowedCwdRoots: cfg.AllowedCwdRoots(),
		DataDir:         cfg.DataDir,
	}
	mgr, err := supervisor.NewServiceManager(cfg.DataDir, policy, log, supervisor.WithMetrics(metrics.SupervisorMetrics{}))
	if err != nil {
		log.Fatal().Err(err).Msg("init service manager")
	}

	sched := scheduler.NewServiceScheduler(mgr, log)

	userStore, err := users.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("init user store")
	}
	engine := users.NewEngine(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL, cfg.RefreshTTL, cfg.DevToken)
	userMgr := users.NewManager(userStore, engine, log)

	deps := &httpapi.Deps{
		Manager:        mgr,
		Scheduler:      sched,
		Users:          userMgr,
		Log:            log,
		CORSOrigins:    cfg.CORSOriginList(),
		LoginLimiter:   ratelimit.New(loginRateLimit, rateLimitWindow),
		RefreshLimiter: ratelimit.New(refreshRateLimit, rateLimitWindow),
	}
	router := httpapi.NewRouter(deps)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", router)

	mgr.AutoStartSweep()
	sched.ReloadAll()
	sched.Start()

	srv := &http.Server{
		Addr:    cfg.Bind,
		Handler: mux,
	}

	go func() {
		log.Info().Str("bind", cfg.Bind).Msg("hearthkeepd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	sched.Stop()
	mgr.ShutdownAll(shutdownTimeout)

	ctxTimeout, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctxTimeout)
}

func isTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
