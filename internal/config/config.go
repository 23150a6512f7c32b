// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/media-orchestrator/internal/media"
	"github.com/maauso/media-orchestrator/internal/storage"
	"github.com/maauso/media-orchestrator/internal/task"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConflictingStorage is returned when both S3 and MinIO are configured.
	ErrConflictingStorage = errors.New("config: S3 and MinIO are mutually exclusive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Storage settings
	TempDir       string `env:"TEMP_DIR, default=/tmp/media-orchestrator" json:"temp_dir" validate:"required"`
	PublishDir    string `env:"PUBLISH_DIR" json:"publish_dir,omitempty"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" json:"public_base_url,omitempty"`

	// Engine settings
	FFmpegPath         string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath        string  `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	CompressionWorkers int     `env:"COMPRESSION_WORKERS, default=2" json:"compression_workers" validate:"min=1,max=16"`
	MaxWidth           int     `env:"COMPRESSION_MAX_WIDTH, default=1280" json:"compression_max_width" validate:"min=2"`
	MaxHeight          int     `env:"COMPRESSION_MAX_HEIGHT, default=720" json:"compression_max_height" validate:"min=2"`
	CRF                int     `env:"COMPRESSION_CRF, default=23" json:"compression_crf" validate:"min=0,max=51"`
	Preset             string  `env:"COMPRESSION_PRESET, default=medium" json:"compression_preset" validate:"oneof=ultrafast superfast veryfast faster fast medium slow slower veryslow"`
	MaxTrimWindowSec   float64 `env:"MAX_TRIM_WINDOW_SEC, default=60" json:"max_trim_window_sec" validate:"gt=0"`

	// Admission limits
	MaxFileSizeBytes   int64   `env:"MAX_FILE_SIZE_BYTES, default=524288000" json:"max_file_size_bytes" validate:"gt=0"`
	MaxConcurrentTasks int     `env:"MAX_CONCURRENT_TASKS, default=2" json:"max_concurrent_tasks" validate:"min=1,max=64"`
	NoTrimThresholdSec float64 `env:"NO_TRIM_THRESHOLD_SEC, default=60" json:"no_trim_threshold_sec" validate:"gt=0"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional MinIO settings
	MinIOEndpoint  string `env:"MINIO_ENDPOINT" json:"minio_endpoint,omitempty"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" json:"-"` // Masked in JSON
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" json:"-"` // Masked in JSON
	MinIOBucket    string `env:"MINIO_BUCKET, default=media" json:"minio_bucket,omitempty"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL, default=false" json:"minio_use_ssl"`

	// Logging settings
	// LogFormat is "json" or "text"; LogLevel one of debug, info, warn, error.
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json TEXT JSON"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MinIOEnabled returns true if a MinIO endpoint is configured.
func (c *Config) MinIOEnabled() bool {
	return c.MinIOEndpoint != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var configValidator = validator.New()

// Validate checks field ranges and that at most one object store is set.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.S3Enabled() && c.MinIOEnabled() {
		return ErrConflictingStorage
	}
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Limits returns the admission limits.
func (c *Config) Limits() task.Limits {
	return task.Limits{
		MaxFileSizeBytes:       c.MaxFileSizeBytes,
		MaxConcurrentTasks:     c.MaxConcurrentTasks,
		NoTrimThresholdSeconds: c.NoTrimThresholdSec,
	}
}

// CompressionSpec returns the engine's output profile.
func (c *Config) CompressionSpec() media.CompressionSpec {
	spec := media.DefaultCompressionSpec()
	spec.MaxWidth = c.MaxWidth
	spec.MaxHeight = c.MaxHeight
	spec.CRF = c.CRF
	spec.Preset = c.Preset
	return spec
}

// S3Config returns the S3 uploader configuration.
func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		PublicBaseURL:   c.PublicBaseURL,
	}
}

// MinIOConfig returns the MinIO uploader configuration.
func (c *Config) MinIOConfig() storage.MinIOConfig {
	return storage.MinIOConfig{
		Endpoint:      c.MinIOEndpoint,
		AccessKey:     c.MinIOAccessKey,
		SecretKey:     c.MinIOSecretKey,
		Bucket:        c.MinIOBucket,
		UseSSL:        c.MinIOUseSSL,
		PublicBaseURL: c.PublicBaseURL,
	}
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, PublishDir: %s, CompressionWorkers: %d, MaxFileSizeBytes: %d, MaxConcurrentTasks: %d, NoTrimThresholdSec: %g, S3Bucket: %s, S3Region: %s, MinIOEndpoint: %s, MinIOBucket: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.PublishDir,
		c.CompressionWorkers,
		c.MaxFileSizeBytes,
		c.MaxConcurrentTasks,
		c.NoTrimThresholdSec,
		c.S3Bucket,
		c.S3Region,
		c.MinIOEndpoint,
		c.MinIOBucket,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
