// Package main is the entrypoint for the MorphCV API server and worker pool.
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

	"github.com/morphcv/morphcv/internal/ai"
	"github.com/morphcv/morphcv/internal/api"
	"github.com/morphcv/morphcv/internal/api/handler"
	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/artifact"
	"github.com/morphcv/morphcv/internal/broker"
	"github.com/morphcv/morphcv/internal/cache"
	"github.com/morphcv/morphcv/internal/compiler"
	"github.com/morphcv/morphcv/internal/config"
	"github.com/morphcv/morphcv/internal/pipeline"
	"github.com/morphcv/morphcv/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create job broker
	jobBroker, err := broker.NewRedis(cfg.Redis.URL, cfg.Pipeline.QueueName)
	if err != nil {
		return fmt.Errorf("create job broker: %w", err)
	}
	defer jobBroker.Close()

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 7. Create store, compiler, artifact store
	pgStore := store.NewPostgresStore(pool)
	latex := compiler.New(cfg.Compiler)
	artifacts, err := artifact.NewFSStore(cfg.Artifact.BaseDir)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}

	// 8. Start the worker pool
	workers := pipeline.NewWorkerPool(pgStore, redisCache, jobBroker, aiProvider, latex, artifacts, pipeline.Config{
		Workers:         cfg.Pipeline.Workers,
		MaxJobsPerOwner: cfg.Pipeline.MaxJobsPerOwner,
		RequeueDelay:    cfg.Pipeline.RequeueDelay,
		StorageRetries:  cfg.Pipeline.StorageRetries,
		TailorTimeout:   cfg.AI.TailorTimeout,
		TailorRetries:   cfg.AI.TailorRetries,
	})
	workers.Start(ctx)

	// 9. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:   handler.NewHealthHandler(pgStore, redisCache),
		CreateCVHandler: handler.NewCreateCVHandler(pgStore, jobBroker, redisCache, cfg.Pipeline.MaxJobsPerOwner),
		StatusHandler:   handler.NewStatusHandler(pgStore, redisCache),
		GetCVHandler:    handler.NewGetCVHandler(pgStore),
		ListCVsHandler:  handler.NewListCVsHandler(pgStore),
		DeleteCVHandler: handler.NewDeleteCVHandler(pgStore, redisCache, artifacts),
		DownloadHandler: handler.NewDownloadHandler(pgStore, artifacts),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 10. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Let in-flight jobs observe cancellation and exit.
	workers.Wait()

	slog.Info("server stopped gracefully")
	return nil
}
