package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinIOStorage(t *testing.T) {
	t.Run("requires bucket", func(t *testing.T) {
		_, err := NewMinIOStorage(t.TempDir(), MinIOConfig{Endpoint: "localhost:9000"})
		assert.Error(t, err)
	})

	t.Run("derives public url from endpoint", func(t *testing.T) {
		storage, err := NewMinIOStorage(t.TempDir(), MinIOConfig{
			Endpoint:  "http://localhost:9000/",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "media",
		})
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:9000/media", storage.baseURL)
		assert.Equal(t, "us-east-1", storage.region)
	})

	t.Run("ssl and public url", func(t *testing.T) {
		storage, err := NewMinIOStorage(t.TempDir(), MinIOConfig{
			Endpoint: "minio.internal:9000",
			Bucket:   "media",
			UseSSL:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://minio.internal:9000/media", storage.baseURL)

		storage, err = NewMinIOStorage(t.TempDir(), MinIOConfig{
			Endpoint:      "minio.internal:9000",
			Bucket:        "media",
			PublicBaseURL: "https://cdn.example.com/",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com", storage.baseURL)
	})
}

// minioMock accepts bucket checks, bucket creation and single-part puts.
type minioMock struct {
	mu      sync.Mutex
	bucket  bool
	created bool
	puts    map[string]int
}

func (m *minioMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucketLevel := len(parts) == 1 || parts[1] == ""
	switch {
	case r.Method == http.MethodHead && bucketLevel:
		if !m.bucket {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && bucketLevel:
		m.bucket = true
		m.created = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		m.puts[parts[1]]++
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newMinIOMock(t *testing.T) (*MinIOStorage, *minioMock) {
	t.Helper()
	mock := &minioMock{puts: map[string]int{}}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	storage, err := NewMinIOStorage(t.TempDir(), MinIOConfig{
		Endpoint:  server.URL,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "media",
	})
	require.NoError(t, err)
	return storage, mock
}

func TestMinIOStorage_EnsureBucket(t *testing.T) {
	storage, mock := newMinIOMock(t)
	ctx := context.Background()

	require.NoError(t, storage.EnsureBucket(ctx))
	assert.True(t, mock.created)

	mock.created = false
	require.NoError(t, storage.EnsureBucket(ctx))
	assert.False(t, mock.created, "existing bucket is not recreated")
}

func TestMinIOStorage_Uploads(t *testing.T) {
	storage, mock := newMinIOMock(t)
	ctx := context.Background()

	url, err := storage.UploadThumbnail(ctx, "task-1.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/media/thumbnails/task-1.jpg"), url)

	src, err := storage.SaveTemp(ctx, "compressed.mp4", bytes.NewReader(bytes.Repeat([]byte("v"), 64*1024)))
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		last int
	)
	url, err = storage.UploadVideo(ctx, "task-1.mp4", src, func(p int) {
		mu.Lock()
		last = p
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/media/videos/task-1.mp4"), url)

	mu.Lock()
	assert.Equal(t, 100, last)
	mu.Unlock()

	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.Equal(t, 1, mock.puts["thumbnails/task-1.jpg"])
	assert.Equal(t, 1, mock.puts["videos/task-1.mp4"])
}
