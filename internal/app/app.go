package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rowwatch/internal/adapter/httpapi"
	"rowwatch/internal/adapter/scheduler"
	"rowwatch/internal/config"
	"rowwatch/internal/platform/logger"
	"rowwatch/internal/platform/sqlite"
	"rowwatch/pkg/observe"
	"rowwatch/pkg/retry"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "rowwatchd",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.log.Info("starting", "db", a.cfg.DB.Path, "query", a.cfg.Observe.Query)
	defer func() { _ = logger.Close(a.log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.DB.MigrationsPath != "" {
		if err := sqlite.ApplyMigrations(a.cfg.DB.Path, a.cfg.DB.MigrationsPath); err != nil {
			return err
		}
		version, dirty, err := sqlite.MigrationVersion(a.cfg.DB.Path, a.cfg.DB.MigrationsPath)
		if err == nil {
			a.log.Info("migrations applied", "version", version, "dirty", dirty)
		}
	}

	db, err := sqlite.NewDB(ctx, a.cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := observe.NewHub()
	runner := sqlite.NewTxRunner(db).WithHub(hub)
	defer runner.Close()

	region := observe.NewRegion(a.cfg.Observe.Tables...)
	reader := sqlite.NewQueryReader(runner, a.cfg.Observe.Query, a.cfg.Observe.KeyColumns)

	observeFn := func(obsCtx context.Context) *observe.Observation {
		return observe.Observe(obsCtx, hub, region, reader)
	}

	// Log the main observation; terminal fetch errors re-observe with backoff
	// since retry is a consumer concern, not the core's.
	go a.watchLoop(ctx, observeFn)

	sched := scheduler.New(a.log)
	_, err = sched.AddJob(a.cfg.Checkpoint.Schedule, func(jobCtx context.Context) error {
		_, err := db.ExecContext(jobCtx, "PRAGMA wal_checkpoint(TRUNCATE)")
		return err
	}, scheduler.JobOptions{Name: "wal_checkpoint", Timeout: time.Minute, OverlapPolicy: scheduler.SkipIfRunning})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	api := httpapi.New(a.log, runner, observeFn, a.cfg.Env)
	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: api.Handler()}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchLoop keeps one observation running, logging every event. When the
// stream terminates with a fetch error, it backs off and re-observes.
func (a *App) watchLoop(ctx context.Context, observeFn httpapi.ObserveFunc) {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.MaxDelay = 30 * time.Second
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		a.log.Warn("observation failed, retrying", "attempt", attempt, "delay", next, "error", err)
	}
	cfg.IsRetryable = func(err error) bool { return ctx.Err() == nil }

	err := retry.RetryWithConfig(ctx, cfg, func(ctx context.Context) error {
		obs := observeFn(ctx)
		defer obs.Cancel()

		for e := range obs.Events() {
			if e.Diff.Initial {
				a.log.Info("initial snapshot", "rows", len(e.Rows))
				continue
			}
			a.log.Info("snapshot changed", "seq", e.Seq, "rows", len(e.Rows), "changes", len(e.Diff.Changes))
			for _, ch := range e.Diff.Changes {
				a.log.Debug("change", "kind", ch.Kind.String(), "index", ch.Index, "key", ch.Row.Key().String())
			}
		}
		return obs.Err()
	})
	if err != nil && ctx.Err() == nil {
		a.log.Error("observation stopped", "error", err)
	}
}
