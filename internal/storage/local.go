package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/maauso/media-orchestrator/internal/media"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// DefaultPublicBaseURL is where the HTTP server mounts the publish directory.
const DefaultPublicBaseURL = "/media"

// LocalStorage implements Storage on local disk. Temporary files live in
// tempDir; published objects are copied below publishDir and addressed
// relative to baseURL.
type LocalStorage struct {
	tempDir    string
	publishDir string
	baseURL    string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a directory below os.TempDir() is used. If publishDir
// is empty, objects are published to a "published" directory inside tempDir.
// Both directories are created if they don't exist.
func NewLocalStorage(tempDir, publishDir, baseURL string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "media-orchestrator")
	}
	if publishDir == "" {
		publishDir = filepath.Join(tempDir, "published")
	}
	if baseURL == "" {
		baseURL = DefaultPublicBaseURL
	}

	for _, dir := range []string{tempDir, publishDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &LocalStorage{
		tempDir:    tempDir,
		publishDir: publishDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// PublishDir returns the directory published objects are written to.
func (s *LocalStorage) PublishDir() string {
	return s.publishDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix; its
// extension is kept so tools that look at it still work.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "upload"
	}

	f, err := os.CreateTemp(s.tempDir, stem+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp opens a temporary file for reading.
// The caller is responsible for closing the returned file.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (*os.File, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadThumbnail writes data below the publish directory.
func (s *LocalStorage) UploadThumbnail(ctx context.Context, name string, data []byte) (string, error) {
	key := ThumbnailPrefix + path.Base(name)
	if err := s.publish(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: thumbnail %s: %w", ErrTransport, name, err)
	}
	return s.URL(key), nil
}

// UploadVideo copies the file at src below the publish directory.
func (s *LocalStorage) UploadVideo(ctx context.Context, name, src string, onProgress media.ProgressFunc) (string, error) {
	f, size, err := s.openUpload(ctx, src)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	progress := newTransferProgress(size, onProgress)
	key := VideoPrefix + path.Base(name)
	if err := s.publish(ctx, key, newProgressReader(f, progress)); err != nil {
		return "", fmt.Errorf("%w: video %s: %w", ErrTransport, name, err)
	}
	progress.finish()

	return s.URL(key), nil
}

// openUpload opens src through LoadTemp and returns it with its size.
// Errors wrap ErrTransport.
func (s *LocalStorage) openUpload(ctx context.Context, src string) (*os.File, int64, error) {
	f, err := s.LoadTemp(ctx, src)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrTransport, filepath.Base(src), err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %w", ErrTransport, filepath.Base(src), err)
	}
	return f, info.Size(), nil
}

// URL returns the public address of key.
func (s *LocalStorage) URL(key string) string {
	return s.baseURL + "/" + key
}

// publish writes r to key atomically: readers of the publish directory never
// see a partial object.
func (s *LocalStorage) publish(ctx context.Context, key string, r io.Reader) error {
	dst := filepath.Join(s.publishDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create publish directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename published file: %w", err)
	}
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
