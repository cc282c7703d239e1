// Package main is the entrypoint for the keygate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/keygate/internal/api"
	"github.com/kiranshivaraju/keygate/internal/api/handler"
	mw "github.com/kiranshivaraju/keygate/internal/api/middleware"
	"github.com/kiranshivaraju/keygate/internal/cache"
	"github.com/kiranshivaraju/keygate/internal/config"
	"github.com/kiranshivaraju/keygate/internal/credential"
	"github.com/kiranshivaraju/keygate/internal/session"
	"github.com/kiranshivaraju/keygate/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "store_driver", cfg.Store.Driver, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open and migrate the credential store
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Build services
	svc := credential.NewService(st,
		credential.WithLimits(cfg.Credential.MaxIssueCount, cfg.Credential.MaxValidityDays))
	sessions := session.NewManager(redisCache, cfg.Session.TTL)

	// 5. Build router with dependencies
	deps := api.Dependencies{
		AdminAuth:       mw.NewAdminAuth(cfg.Admin.PasswordHash),
		VerifyRateLimit: mw.NewRateLimit(redisCache, "verify", cfg.Session.VerifyRateLimit),

		HealthHandler:        healthHandler(cfg.Store.Driver, st, redisCache),
		VerifyHandler:        handler.NewVerifyHandler(svc, sessions),
		SessionStatusHandler: handler.NewSessionStatusHandler(sessions),
		EndSessionHandler:    handler.NewEndSessionHandler(sessions),
		IssueHandler:         handler.NewIssueHandler(svc),
		ListHandler:          handler.NewListHandler(svc),
		SetStateHandler:      handler.NewSetStateHandler(svc),
		DeleteHandler:        handler.NewDeleteHandler(svc),
	}

	// 6. Serve until the signal context is cancelled
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv)
}

// serve runs srv until ctx is done, then drains in-flight requests for at
// most shutdownTimeout.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// openStore connects the configured backend and applies its migrations.
// The returned func releases the connections.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := store.NewDB(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := store.RunSQLiteMigrations(db.Writer); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("sqlite store ready", "path", cfg.SQLite.Path)
		return store.NewSQLiteStore(db), func() { db.Close() }, nil

	default:
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("postgres store ready")
		return store.NewPostgresStore(pool), pool.Close, nil
	}
}
