package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pencilsharp/pencilsharp/internal/account"
	"github.com/pencilsharp/pencilsharp/internal/api"
	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/events"
	"github.com/pencilsharp/pencilsharp/internal/platform/cache"
	"github.com/pencilsharp/pencilsharp/internal/platform/config"
	"github.com/pencilsharp/pencilsharp/internal/platform/database"
	"github.com/pencilsharp/pencilsharp/internal/session"
)

const eventQueueSize = 1024

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stdout, cfg.Log)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     app.handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /v1/events streams for the life of the connection.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// app holds everything that needs closing on shutdown.
type app struct {
	handler  http.Handler
	recorder *events.Recorder
	db       *database.DB
	cache    *cache.Cache
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	catalog, err := curriculum.LoadCatalog(cfg.CurriculumPath)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	slog.Info("curriculum loaded", "subjects", len(catalog.Subjects), "path", cfg.CurriculumPath)

	a := &app{}
	var (
		accounts account.Store
		states   session.Store
		logger   events.EventLogger = events.NopEventLogger{}
		checks   []api.Check
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		a.db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		accountStore, err := account.NewPostgresStore(a.db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		stateStore, err := session.NewPostgresStore(a.db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		eventLogger := events.NewPostgresEventLogger(a.db.Pool)
		if err := a.db.EnsureSchemas(ctx, accountStore, stateStore, eventLogger); err != nil {
			a.Close()
			return nil, err
		}
		accounts, states, logger = accountStore, stateStore, eventLogger
		checks = append(checks, api.Check{Name: "database", Fn: a.db.HealthCheck})
	default:
		accounts = account.NewMemoryStore()
		states = session.NewMemoryStore()
	}

	if cfg.Cache.Enabled {
		a.cache, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		states, err = session.NewCachedStore(a.cache, states, cfg.Cache.TTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		checks = append(checks, api.Check{Name: "cache", Fn: a.cache.HealthCheck})
		slog.Info("session cache enabled", "ttl", cfg.Cache.TTL)
	}

	a.recorder = events.NewRecorder(logger, eventQueueSize)

	mgr, err := session.NewManager(session.ManagerConfig{
		Catalog:   catalog,
		Store:     states,
		Recorder:  a.recorder,
		DailyGoal: cfg.Learning.DailyGoal,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	srv, err := api.New(api.Config{Accounts: accounts, Sessions: mgr, Checks: checks})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.handler = srv.Handler()
	return a, nil
}

// Close flushes recorded events and releases connections.
func (a *app) Close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("cache close failed", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
