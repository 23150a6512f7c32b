// Package storage provides temporary file handling and the upload
// transports that publish finished thumbnails and videos. It defines the
// Storage interface and implementations for local disk, S3 and MinIO.
package storage

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/maauso/media-orchestrator/internal/media"
)

// ErrTransport is wrapped by every upload failure. The wrapped message is
// the backend's own and is shown to the user as-is.
var ErrTransport = errors.New("upload failed")

// Object key prefixes.
const (
	ThumbnailPrefix = "thumbnails/"
	VideoPrefix     = "videos/"
)

// Storage defines temporary file handling plus the publishing uploads.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a temporary file for reading.
	// The caller is responsible for closing the returned file.
	LoadTemp(ctx context.Context, path string) (*os.File, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadThumbnail publishes a JPEG still and returns its URL.
	UploadThumbnail(ctx context.Context, name string, data []byte) (url string, err error)

	// UploadVideo publishes the file at path and returns its URL.
	// onProgress receives the transferred share of the file, ending at 100.
	UploadVideo(ctx context.Context, name, path string, onProgress media.ProgressFunc) (url string, err error)
}
