// Package bootstrap provides dependency initialization for the media orchestrator.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/media-orchestrator/internal/config"
	"github.com/maauso/media-orchestrator/internal/document"
	"github.com/maauso/media-orchestrator/internal/events"
	"github.com/maauso/media-orchestrator/internal/media"
	"github.com/maauso/media-orchestrator/internal/storage"
	"github.com/maauso/media-orchestrator/internal/task"
)

// bucketCheckTimeout bounds the MinIO bucket check at startup.
const bucketCheckTimeout = 10 * time.Second

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Orchestrator *task.Orchestrator
	Processor    *media.FFmpegProcessor
	Storage      storage.Storage
	Draft        *document.Draft
	Hub          *events.Hub
	// MediaDir is the local publish directory, empty when publishing to an
	// object store.
	MediaDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, mediaDir, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media processor
	processor := media.NewFFmpegProcessor(cfg.TempDir,
		media.WithFFmpegPath(cfg.FFmpegPath),
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithWorkers(cfg.CompressionWorkers),
		media.WithCompressionSpec(cfg.CompressionSpec()),
		media.WithMaxTrimWindow(cfg.MaxTrimWindowSec),
		media.WithLogger(logger),
	)

	draft := document.NewDraft()
	hub := events.NewHub()

	orchestrator := task.NewOrchestrator(processor, store, logger,
		task.WithLimits(cfg.Limits()),
		task.WithDocumentInserter(draft),
		task.WithNotifier(task.Notifiers{hub, task.LogNotifier{Logger: logger}}),
		task.WithObserver(hub),
		task.WithScratch(store),
	)

	return &Dependencies{
		Orchestrator: orchestrator,
		Processor:    processor,
		Storage:      store,
		Draft:        draft,
		Hub:          hub,
		MediaDir:     mediaDir,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
// The returned directory is non-empty only for local publishing.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, string, error) {
	switch {
	case cfg.S3Enabled():
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.S3Config())
		if err != nil {
			return nil, "", fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, "", nil

	case cfg.MinIOEnabled():
		minioStore, err := storage.NewMinIOStorage(cfg.TempDir, cfg.MinIOConfig())
		if err != nil {
			return nil, "", fmt.Errorf("create MinIO storage: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), bucketCheckTimeout)
		defer cancel()
		if err := minioStore.EnsureBucket(ctx); err != nil {
			return nil, "", fmt.Errorf("prepare MinIO bucket: %w", err)
		}
		logger.Info("MinIO storage configured",
			slog.String("endpoint", cfg.MinIOEndpoint),
			slog.String("bucket", cfg.MinIOBucket),
		)
		return minioStore, "", nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.PublishDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
		slog.String("publish_dir", localStore.PublishDir()),
	)
	return localStore, localStore.PublishDir(), nil
}
