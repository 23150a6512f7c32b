package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so ambient values cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "TEMP_DIR", "PUBLISH_DIR", "PUBLIC_BASE_URL",
		"FFMPEG_PATH", "FFPROBE_PATH", "COMPRESSION_WORKERS", "COMPRESSION_MAX_WIDTH",
		"COMPRESSION_MAX_HEIGHT", "COMPRESSION_CRF", "COMPRESSION_PRESET", "MAX_TRIM_WINDOW_SEC",
		"MAX_FILE_SIZE_BYTES", "MAX_CONCURRENT_TASKS", "NO_TRIM_THRESHOLD_SEC",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
		"LOG_FORMAT", "LOG_LEVEL",
	} {
		t.Setenv(key, "") // restores the original value on cleanup
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "/tmp/media-orchestrator", cfg.TempDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 2, cfg.CompressionWorkers)
	assert.Equal(t, int64(524288000), cfg.MaxFileSizeBytes)
	assert.Equal(t, 2, cfg.MaxConcurrentTasks)
	assert.InDelta(t, 60.0, cfg.NoTrimThresholdSec, 0)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
	assert.False(t, cfg.MinIOEnabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("MAX_FILE_SIZE_BYTES", "1048576")
	t.Setenv("MAX_CONCURRENT_TASKS", "4")
	t.Setenv("NO_TRIM_THRESHOLD_SEC", "30")
	t.Setenv("COMPRESSION_CRF", "28")
	t.Setenv("COMPRESSION_PRESET", "fast")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.True(t, cfg.S3Enabled())

	limits := cfg.Limits()
	assert.Equal(t, int64(1048576), limits.MaxFileSizeBytes)
	assert.Equal(t, 4, limits.MaxConcurrentTasks)
	assert.InDelta(t, 30.0, limits.NoTrimThresholdSeconds, 0)

	spec := cfg.CompressionSpec()
	assert.Equal(t, 28, spec.CRF)
	assert.Equal(t, "fast", spec.Preset)
	assert.Equal(t, 1280, spec.MaxWidth)
	assert.Equal(t, "libx264", spec.VideoCodec)

	s3 := cfg.S3Config()
	assert.Equal(t, "my-bucket", s3.Bucket)
	assert.Equal(t, "secret-key", s3.SecretAccessKey)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "PORT", "not-a-number"},
		{"port out of range", "PORT", "70000"},
		{"zero concurrency", "MAX_CONCURRENT_TASKS", "0"},
		{"negative file size", "MAX_FILE_SIZE_BYTES", "-1"},
		{"crf out of range", "COMPRESSION_CRF", "60"},
		{"unknown preset", "COMPRESSION_PRESET", "turbo"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ConflictingStorage(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET", "bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")

	_, err := Load()
	assert.ErrorIs(t, err, ErrConflictingStorage)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_MinIOConfig(t *testing.T) {
	cfg := &Config{
		MinIOEndpoint:  "localhost:9000",
		MinIOAccessKey: "minioadmin",
		MinIOSecretKey: "minio-secret",
		MinIOBucket:    "media",
		MinIOUseSSL:    true,
		PublicBaseURL:  "https://cdn.example.com",
	}

	assert.True(t, cfg.MinIOEnabled())
	mc := cfg.MinIOConfig()
	assert.Equal(t, "localhost:9000", mc.Endpoint)
	assert.Equal(t, "media", mc.Bucket)
	assert.True(t, mc.UseSSL)
	assert.Equal(t, "https://cdn.example.com", mc.PublicBaseURL)
}

func TestConfig_SecretsMasked(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		TempDir:            "/tmp/test",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "access-id",
		AWSSecretAccessKey: "secret-key",
		MinIOAccessKey:     "minio-access",
		MinIOSecretKey:     "minio-secret",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	for _, secret := range []string{"access-id", "secret-key", "minio-access", "minio-secret"} {
		assert.NotContains(t, str, secret)
		assert.NotContains(t, string(data), secret)
	}
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := &Config{LogFormat: format, LogLevel: "debug"}

			logger := cfg.NewLogger()
			require.NotNil(t, logger)
			assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
