package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/maauso/media-orchestrator/internal/media"
)

// Uploader moves finished artifacts to durable storage and returns their
// public URLs. Error messages are shown to users verbatim.
type Uploader interface {
	UploadThumbnail(ctx context.Context, name string, data []byte) (string, error)
	UploadVideo(ctx context.Context, name, path string, onProgress media.ProgressFunc) (string, error)
}

// Scratch releases temporary files that no tracked task references anymore.
type Scratch interface {
	CleanupTemp(ctx context.Context, paths []string) error
}

// DocumentInserter attaches a finished video to the draft being authored.
type DocumentInserter interface {
	InsertVideoReference(url string)
}

// TrimWindow is the [Start, End) range of a clip to keep, in seconds.
type TrimWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TrimSelector asks the user which part of an over-long clip to keep.
// Returning ErrTrimCancelled abandons the submission.
type TrimSelector interface {
	SelectTrim(ctx context.Context, file SourceFile, durationSeconds float64) (TrimWindow, error)
}

// FixedTrim is a TrimSelector that always answers with the same window.
type FixedTrim TrimWindow

func (f FixedTrim) SelectTrim(context.Context, SourceFile, float64) (TrimWindow, error) {
	return TrimWindow(f), nil
}

// requireTrim is the default TrimSelector: it has no UI, so it reports the
// duration back to the caller.
type requireTrim struct {
	maxSeconds float64
}

func (r requireTrim) SelectTrim(_ context.Context, _ SourceFile, durationSeconds float64) (TrimWindow, error) {
	return TrimWindow{}, &TrimRequiredError{DurationSeconds: durationSeconds, MaxSeconds: r.maxSeconds}
}

// NoticeKind classifies a user-facing notice.
type NoticeKind string

const (
	NoticeFileTooLarge      NoticeKind = "file_too_large"
	NoticeConcurrencyLimit  NoticeKind = "concurrency_limit_reached"
	NoticeInvalidMediaType  NoticeKind = "invalid_media_type"
	NoticeCompressionFailed NoticeKind = "compression_failed"
	NoticeUploadFailed      NoticeKind = "upload_failed"
	NoticeProcessingFailed  NoticeKind = "processing_failed"
	NoticeAllTasksComplete  NoticeKind = "all_tasks_complete"
)

// Notice is a fire-and-forget toast or banner message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	TaskID  string     `json:"task_id,omitempty"`
	Message string     `json:"message"`
	// Retryable is set when the notice should offer a retry action.
	Retryable bool      `json:"retryable,omitempty"`
	Time      time.Time `json:"time"`
}

// Notifier delivers notices. Notify must not block.
type Notifier interface {
	Notify(n Notice)
}

// Notifiers fans a notice out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notice) {
	for _, notifier := range ns {
		notifier.Notify(n)
	}
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Kind {
	case NoticeCompressionFailed, NoticeUploadFailed, NoticeProcessingFailed:
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "notice",
		slog.String("kind", string(n.Kind)),
		slog.String("task_id", n.TaskID),
		slog.String("message", n.Message),
	)
}

// Observer receives task snapshots on every state change. Calls are made
// while the orchestrator lock is held and must not block or call back.
type Observer interface {
	TaskUpdated(t MediaTask)
	TaskRemoved(taskID string)
}

type nopObserver struct{}

func (nopObserver) TaskUpdated(MediaTask) {}
func (nopObserver) TaskRemoved(string)    {}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

type nopInserter struct{}

func (nopInserter) InsertVideoReference(string) {}
