// Package main provides the entry point for the media orchestrator server.
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

	"github.com/maauso/media-orchestrator/internal/bootstrap"
	"github.com/maauso/media-orchestrator/internal/config"
	"github.com/maauso/media-orchestrator/internal/events"
	"github.com/maauso/media-orchestrator/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting media orchestrator",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int64("max_file_size_bytes", cfg.MaxFileSizeBytes),
		slog.Int("max_concurrent_tasks", cfg.MaxConcurrentTasks),
		slog.Float64("no_trim_threshold_sec", cfg.NoTrimThresholdSec),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("minio_enabled", cfg.MinIOEnabled()),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Probe the engine once up front; requests retry if this fails.
	if err := deps.Processor.Ready(context.Background()); err != nil {
		logger.Warn("media engine not ready", slog.String("error", err.Error()))
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go deps.Hub.Run(hubCtx)

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.Orchestrator, deps.Storage, deps.Draft, logger,
		server.WithReadinessChecker(deps.Processor),
	)
	routerCfg := server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		Events:         events.NewHandler(deps.Hub, deps.Orchestrator.Tasks, cfg.AllowedOrigins, logger).ServeWS,
		MediaDir:       deps.MediaDir,
	}
	router := server.NewRouter(handlers, logger, routerCfg)

	// Create HTTP server. Uploads and trims run inside the request, so
	// reads and writes get generous timeouts.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := deps.Orchestrator.Close(ctx); err != nil {
		logger.Warn("pipelines interrupted", slog.String("error", err.Error()))
	}
	stopHub()

	logger.Info("server stopped gracefully")
	return nil
}
