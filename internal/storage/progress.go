package storage

import (
	"io"
	"sync"

	"github.com/maauso/media-orchestrator/internal/media"
)

// transferProgress turns a running byte count into whole percentages of
// total. It stays below 100 until the caller confirms the upload.
type transferProgress struct {
	mu     sync.Mutex
	total  int64
	done   int64
	report media.ProgressFunc
}

func newTransferProgress(total int64, fn media.ProgressFunc) *transferProgress {
	return &transferProgress{total: total, report: media.Monotonic(fn)}
}

func (p *transferProgress) add(n int) {
	if n <= 0 || p.total <= 0 {
		return
	}
	p.mu.Lock()
	p.done += int64(n)
	percent := int(p.done * 100 / p.total)
	p.mu.Unlock()

	p.report(min(percent, 99))
}

func (p *transferProgress) reset() {
	p.mu.Lock()
	p.done = 0
	p.mu.Unlock()
}

func (p *transferProgress) finish() {
	p.report(100)
}

// Read counts len(b) as transferred. It lets transferProgress serve as a
// minio-go progress reader, which is fed the bytes already sent.
func (p *transferProgress) Read(b []byte) (int, error) {
	p.add(len(b))
	return len(b), nil
}

// CountingReader counts the bytes read through it. The server uses it to
// size uploads; progressReader builds on it to report transfer progress.
type CountingReader struct {
	r      io.Reader
	n      int64
	onRead func(n int)
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	if n > 0 && c.onRead != nil {
		c.onRead(n)
	}
	return n, err
}

// Count returns the number of bytes read so far.
func (c *CountingReader) Count() int64 {
	return c.n
}

// progressReader feeds the bytes read from a file into a transferProgress.
// Seeking back to the start (as an SDK retry does) restarts the count;
// reported progress never regresses.
type progressReader struct {
	*CountingReader
	seeker   io.Seeker
	progress *transferProgress
}

func newProgressReader(r io.ReadSeeker, progress *transferProgress) *progressReader {
	return &progressReader{
		CountingReader: &CountingReader{r: r, onRead: progress.add},
		seeker:         r,
		progress:       progress,
	}
}

func (r *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.seeker.Seek(offset, whence)
	if err == nil && pos == 0 {
		r.n = 0
		r.progress.reset()
	}
	return pos, err
}
