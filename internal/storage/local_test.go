package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directories if not exist", func(t *testing.T) {
		tempDir := filepath.Join(os.TempDir(), "media_orchestrator_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(tempDir) }()

		storage, err := NewLocalStorage(tempDir, "", "")
		require.NoError(t, err)

		assert.Equal(t, tempDir, storage.TempDir())
		assert.Equal(t, filepath.Join(tempDir, "published"), storage.PublishDir())

		for _, dir := range []string{storage.TempDir(), storage.PublishDir()} {
			info, err := os.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("", "", "")
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(os.TempDir(), "media-orchestrator"), storage.TempDir())
		assert.Equal(t, "/media/videos/x.mp4", storage.URL("videos/x.mp4"))
	})

	t.Run("trims trailing slash from base URL", func(t *testing.T) {
		storage, err := NewLocalStorage(t.TempDir(), "", "https://cdn.example.com/")
		require.NoError(t, err)

		assert.Equal(t, "https://cdn.example.com/thumbnails/a.jpg", storage.URL("thumbnails/a.jpg"))
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data to temp file", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "clip.mov", bytes.NewReader([]byte("test data")))
		require.NoError(t, err)
		defer func() { _ = os.Remove(path) }()

		base := filepath.Base(path)
		assert.True(t, strings.HasPrefix(base, "clip_"), base)
		assert.Equal(t, ".mov", filepath.Ext(base))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "test data", string(content))
	})

	t.Run("strips directories from name", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "../../etc/clip.mp4", strings.NewReader("x"))
		require.NoError(t, err)
		defer func() { _ = os.Remove(path) }()

		assert.Equal(t, storage.TempDir(), filepath.Dir(path))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("data")))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalStorage_LoadTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("loads existing file", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("hello world")))
		require.NoError(t, err)
		defer func() { _ = os.Remove(path) }()

		reader, err := storage.LoadTemp(ctx, path)
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(content))
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := storage.LoadTemp(ctx, "/nonexistent/path")
		assert.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := storage.LoadTemp(cctx, "/any/path")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		path1, err := storage.SaveTemp(ctx, "test1", bytes.NewReader([]byte("data1")))
		require.NoError(t, err)
		path2, err := storage.SaveTemp(ctx, "test2", bytes.NewReader([]byte("data2")))
		require.NoError(t, err)

		require.NoError(t, storage.CleanupTemp(ctx, []string{path1, path2}))

		assert.NoFileExists(t, path1)
		assert.NoFileExists(t, path2)
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		assert.NoError(t, storage.CleanupTemp(ctx, []string{"/nonexistent/file1", "/nonexistent/file2"}))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := storage.CleanupTemp(cctx, []string{"/some/path"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalStorage_UploadThumbnail(t *testing.T) {
	storage := setupTestStorage(t)

	url, err := storage.UploadThumbnail(context.Background(), "task-1.jpg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/media/thumbnails/task-1.jpg", url)

	content, err := os.ReadFile(filepath.Join(storage.PublishDir(), "thumbnails", "task-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(content))
}

func TestLocalStorage_UploadVideo(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	data := bytes.Repeat([]byte("v"), 256*1024)
	src, err := storage.SaveTemp(ctx, "compressed.mp4", bytes.NewReader(data))
	require.NoError(t, err)

	t.Run("publishes and reports progress", func(t *testing.T) {
		var (
			mu      sync.Mutex
			reports []int
		)
		url, err := storage.UploadVideo(ctx, "task-1.mp4", src, func(p int) {
			mu.Lock()
			reports = append(reports, p)
			mu.Unlock()
		})
		require.NoError(t, err)
		assert.Equal(t, "/media/videos/task-1.mp4", url)

		content, err := os.ReadFile(filepath.Join(storage.PublishDir(), "videos", "task-1.mp4"))
		require.NoError(t, err)
		assert.Equal(t, data, content)

		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, reports)
		assert.Equal(t, 100, reports[len(reports)-1])
		assert.IsIncreasing(t, reports)
	})

	t.Run("missing source is a transport error", func(t *testing.T) {
		_, err := storage.UploadVideo(ctx, "task-2.mp4", filepath.Join(storage.TempDir(), "gone.mp4"), nil)
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("cancelled context leaves no partial object", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := storage.UploadVideo(cctx, "task-3.mp4", src, nil)
		require.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)

		entries, err := os.ReadDir(filepath.Join(storage.PublishDir(), "videos"))
		if !os.IsNotExist(err) {
			require.NoError(t, err)
		}
		for _, e := range entries {
			assert.NotEqual(t, "task-3.mp4", e.Name())
			assert.False(t, strings.HasPrefix(e.Name(), ".partial-"), e.Name())
		}
	})
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	tempDir := filepath.Join(os.TempDir(), "media_orchestrator_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	storage, err := NewLocalStorage(tempDir, "", "")
	require.NoError(t, err)
	return storage
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
