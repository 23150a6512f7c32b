// Package task provides the MediaTask aggregate and the Orchestrator that
// admits, runs and tracks video processing tasks for an authoring session.
package task

import (
	"errors"
	"time"

	"github.com/maauso/media-orchestrator/internal/task/id"
)

// Status represents the current state of a MediaTask.
type Status string

const (
	// StatusUploading is the initial state and the state while the
	// thumbnail and video are transferred.
	StatusUploading Status = "UPLOADING"
	// StatusCompressing indicates the video is being re-encoded.
	StatusCompressing Status = "COMPRESSING"
	// StatusComplete indicates both uploads finished.
	StatusComplete Status = "COMPLETE"
	// StatusFailed indicates a pipeline step failed.
	StatusFailed Status = "FAILED"
)

// Phase is a finer display stage inside a Status.
type Phase string

const (
	PhaseQueued             Phase = "queued"
	PhaseCompressing        Phase = "compressing"
	PhaseUploadingThumbnail Phase = "uploading_thumbnail"
	PhaseUploadingVideo     Phase = "uploading_video"
	PhaseDone               Phase = "done"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusUploading:   {StatusCompressing, StatusComplete, StatusFailed},
	StatusCompressing: {StatusUploading, StatusFailed},
	StatusComplete:    {},
	StatusFailed:      {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourceFile is the user-selected file a task was created from.
type SourceFile struct {
	// Path is the local path of the file contents.
	Path string `json:"-"`
	// Name is the original file name as picked by the user.
	Name string `json:"name"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// MIMEType is the sniffed content type, filled during admission.
	MIMEType string `json:"mime_type,omitempty"`
}

// CompressionStats records the outcome of the compression step.
type CompressionStats struct {
	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`
	Skipped        bool  `json:"skipped"`
}

// MediaTask is one user-selected video moving through the pipeline.
//
// MediaTask has no lock of its own. The Orchestrator serializes every
// mutation and hands out copies.
type MediaTask struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Source is the submitted file. It never changes.
	Source SourceFile `json:"source"`
	// Status is the current task state.
	Status Status `json:"status"`
	// Phase is the current display stage.
	Phase Phase `json:"phase"`
	// Progress is the percentage of the current status (0-100).
	Progress int `json:"progress"`
	// ThumbnailURL is set once the thumbnail upload finished.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// VideoURL is set once the video upload finished.
	VideoURL string `json:"video_url,omitempty"`
	// Error is the failure message of a FAILED task.
	Error string `json:"error,omitempty"`
	// Compression is set once compression finished.
	Compression *CompressionStats `json:"compression,omitempty"`
	// RetryOf is the ID of the failed task this one replaced.
	RetryOf string `json:"retry_of,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// New creates a task for src with a generated ID in the initial UPLOADING state.
func New(src SourceFile) *MediaTask {
	return NewWithID(id.Generate(), src)
}

// NewWithID creates a task with the specified ID.
// Useful for testing or when the ID needs to be externally generated.
func NewWithID(taskID string, src SourceFile) *MediaTask {
	now := time.Now()
	return &MediaTask{
		ID:        taskID,
		Source:    src,
		Status:    StatusUploading,
		Phase:     PhaseQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo changes the task status and resets progress.
// Returns ErrInvalidTransition if the transition is not allowed.
func (t *MediaTask) TransitionTo(status Status) error {
	if !canTransition(t.Status, status) {
		return ErrInvalidTransition
	}

	t.Status = status
	t.Progress = 0
	t.UpdatedAt = time.Now()

	switch status {
	case StatusCompressing:
		t.Phase = PhaseCompressing
	case StatusComplete:
		t.Phase = PhaseDone
		t.Progress = 100
		t.CompletedAt = t.UpdatedAt
	case StatusFailed:
		t.CompletedAt = t.UpdatedAt
	}
	return nil
}

// SetPhase changes the display stage without touching Status or Progress.
func (t *MediaTask) SetPhase(phase Phase) {
	t.Phase = phase
	t.UpdatedAt = time.Now()
}

// SetProgress raises progress to percent. Values that would move progress
// backwards are ignored; it returns whether progress changed.
func (t *MediaTask) SetProgress(percent int) bool {
	if t.IsTerminal() {
		return false
	}
	percent = max(0, min(percent, 100))
	if percent <= t.Progress {
		return false
	}
	t.Progress = percent
	t.UpdatedAt = time.Now()
	return true
}

// Fail transitions the task to FAILED with an error message.
func (t *MediaTask) Fail(errMsg string) error {
	if err := t.TransitionTo(StatusFailed); err != nil {
		return err
	}
	t.Error = errMsg
	return nil
}

// Complete records the video URL and transitions the task to COMPLETE.
func (t *MediaTask) Complete(videoURL string) error {
	if err := t.TransitionTo(StatusComplete); err != nil {
		return err
	}
	t.VideoURL = videoURL
	return nil
}

// IsTerminal returns true if the task is COMPLETE or FAILED.
func (t *MediaTask) IsTerminal() bool {
	return t.Status == StatusComplete || t.Status == StatusFailed
}

// IsInFlight returns true while the task is compressing or uploading.
func (t *MediaTask) IsInFlight() bool {
	return !t.IsTerminal()
}

// Clone returns a deep copy for safe reads.
func (t *MediaTask) Clone() MediaTask {
	c := *t
	if t.Compression != nil {
		stats := *t.Compression
		c.Compression = &stats
	}
	return c
}
