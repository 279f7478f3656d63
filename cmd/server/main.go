package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/unichart/unichart/internal/catalog"
	"github.com/unichart/unichart/internal/platform/cache"
	"github.com/unichart/unichart/internal/platform/config"
	"github.com/unichart/unichart/internal/platform/database"
	"github.com/unichart/unichart/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cat, closeCat, err := buildCatalog(ctx, cfg)
	if err != nil {
		slog.Error("failed to build catalog", "error", err)
		os.Exit(1)
	}
	defer closeCat()

	state, closeState, err := buildStateStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to build state store", "error", err)
		os.Exit(1)
	}
	defer closeState()

	store := tracker.NewStore(ctx, tracker.Config{
		Source: cat,
		State:  state,
		Logger: logger,
	})

	mux := newAPI(store, cat, logger).routes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
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

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// buildCatalog assembles the template catalog, optionally wrapped with a
// Redis cache when a cache URL is configured.
func buildCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, func(), error) {
	var cat catalog.Catalog
	var err error

	switch cfg.Catalog.Mode {
	case config.CatalogHTTP:
		cat = catalog.NewHTTPCatalog(cfg.Catalog.BaseURL, nil)
	default:
		cat, err = catalog.NewFSCatalog(cfg.Catalog.Root)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.Cache.URL == "" {
		return cat, func() {}, nil
	}

	c, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		return nil, nil, err
	}
	cached := catalog.NewCachedCatalog(cat, c.Client, cfg.Cache.TTL)
	return cached, func() { c.Close() }, nil
}

func buildStateStore(ctx context.Context, cfg *config.Config) (tracker.StateStore, func(), error) {
	switch cfg.State.Backend {
	case config.StateMemory:
		return tracker.NewMemoryStateStore(), func() {}, nil
	case config.StatePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, err
		}
		store, err := tracker.NewPostgresStateStore(ctx, db.Pool, cfg.State.Namespace)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		return tracker.NewFileStateStore(cfg.State.Dir), func() {}, nil
	}
}
