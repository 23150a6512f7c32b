// Package document holds the draft the finished videos are attached to.
package document

import (
	"sync"
	"time"

	"github.com/maauso/media-orchestrator/internal/task"
)

// Compile-time check that Draft implements task.DocumentInserter.
var _ task.DocumentInserter = (*Draft)(nil)

// VideoReference is one video embedded in the draft.
type VideoReference struct {
	URL        string    `json:"url"`
	InsertedAt time.Time `json:"inserted_at"`
}

// Draft is an in-memory list of video references, in insertion order.
type Draft struct {
	mu    sync.RWMutex
	refs  []VideoReference
	clock func() time.Time
}

// NewDraft creates an empty draft.
func NewDraft() *Draft {
	return &Draft{clock: time.Now}
}

// InsertVideoReference appends url to the draft.
func (d *Draft) InsertVideoReference(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs = append(d.refs, VideoReference{URL: url, InsertedAt: d.clock().UTC()})
}

// References returns a copy of the inserted references.
func (d *Draft) References() []VideoReference {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]VideoReference, len(d.refs))
	copy(out, d.refs)
	return out
}

// Len returns the number of references.
func (d *Draft) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.refs)
}
