package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/maauso/media-orchestrator/internal/media"
)

// Compile-time check that MinIOStorage implements Storage.
var _ Storage = (*MinIOStorage)(nil)

// MinIOConfig holds the configuration for MinIO storage.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup. Defaults to us-east-1.
	Region string
	// PublicBaseURL overrides the URL prefix returned for uploaded objects.
	PublicBaseURL string
}

// MinIOStorage wraps LocalStorage and publishes to a MinIO bucket.
type MinIOStorage struct {
	*LocalStorage
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

// NewMinIOStorage creates a new MinIOStorage instance.
func NewMinIOStorage(tempDir string, cfg MinIOConfig) (*MinIOStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	local, err := NewLocalStorage(tempDir, "", "")
	if err != nil {
		return nil, err
	}

	// minio-go expects host:port
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimRight(endpoint, "/")

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}

	return &MinIOStorage{
		LocalStorage: local,
		client:       client,
		bucket:       cfg.Bucket,
		region:       region,
		baseURL:      baseURL,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// UploadThumbnail puts a JPEG still into the bucket.
func (s *MinIOStorage) UploadThumbnail(ctx context.Context, name string, data []byte) (string, error) {
	key := ThumbnailPrefix + path.Base(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return s.baseURL + "/" + key, nil
}

// UploadVideo streams the file at src into the bucket, reporting the bytes
// minio-go has sent.
func (s *MinIOStorage) UploadVideo(ctx context.Context, name, src string, onProgress media.ProgressFunc) (string, error) {
	f, size, err := s.openUpload(ctx, src)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	progress := newTransferProgress(size, onProgress)
	key := VideoPrefix + path.Base(name)

	_, err = s.client.PutObject(ctx, s.bucket, key, f, size, minio.PutObjectOptions{
		ContentType: "video/mp4",
		Progress:    progress,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	progress.finish()

	return s.baseURL + "/" + key, nil
}
