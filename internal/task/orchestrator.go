package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/maauso/media-orchestrator/internal/media"
	"github.com/maauso/media-orchestrator/internal/metrics"
)

// Summary is the aggregate view the authoring UI renders.
type Summary struct {
	// CanPublish is false while any task is compressing or uploading.
	CanPublish bool `json:"can_publish"`
	// ShowProgress is true while work is in flight.
	ShowProgress bool `json:"show_progress"`
	// AllowCancel is true while there is something to cancel.
	AllowCancel bool `json:"allow_cancel"`
	// AllowDismiss is true once every tracked task is terminal.
	AllowDismiss bool `json:"allow_dismiss"`
	Total        int  `json:"total"`
	InFlight     int  `json:"in_flight"`
	Failed       int  `json:"failed"`
	Completed    int  `json:"completed"`
	// Progress is the mean progress of in-flight tasks.
	Progress int `json:"progress"`
}

// Orchestrator owns the active task set of one authoring session. It
// admits submissions, runs each admitted task through compress, thumbnail
// and upload steps, and derives the aggregate status.
//
// All task state lives behind one mutex. Admission check and task creation
// happen in the same critical section, so bursts cannot exceed the
// concurrency cap. Cancelling a task only stops tracking it; its pipeline
// goroutine notices at the next step and every late result is discarded.
type Orchestrator struct {
	processor  media.Processor
	uploader   Uploader
	logger     *slog.Logger
	inserter   DocumentInserter
	notifier   Notifier
	observer   Observer
	trims      TrimSelector
	scratch    Scratch
	detectMIME func(path string) (string, error)

	mu     sync.Mutex
	limits Limits
	tasks  *activeSet
	closed bool

	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimits sets the admission limits.
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) { o.limits = l }
}

// WithDocumentInserter sets where finished videos are attached.
func WithDocumentInserter(d DocumentInserter) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.inserter = d
		}
	}
}

// WithNotifier sets the notice channel.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithObserver sets the task change listener.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTrimSelector sets the selector consulted for over-long clips when a
// submission carries no window of its own.
func WithTrimSelector(s TrimSelector) Option {
	return func(o *Orchestrator) { o.trims = s }
}

// WithScratch sets how temporary files are released.
func WithScratch(s Scratch) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.scratch = s
		}
	}
}

// WithMIMEDetector replaces content sniffing.
func WithMIMEDetector(fn func(path string) (string, error)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.detectMIME = fn
		}
	}
}

// NewOrchestrator creates an Orchestrator with DefaultLimits.
func NewOrchestrator(processor media.Processor, uploader Uploader, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		processor:  processor,
		uploader:   uploader,
		logger:     logger,
		inserter:   nopInserter{},
		notifier:   nopNotifier{},
		observer:   nopObserver{},
		scratch:    removeFiles{},
		detectMIME: media.DetectMIME,
		limits:     DefaultLimits(),
		tasks:      newActiveSet(),
		baseCtx:    ctx,
		stop:       stop,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SubmitOption configures a single submission.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	trims   TrimSelector
	trimmed bool
}

// WithTrimWindow answers the trim question up front for this submission.
// It is only consulted when the clip is longer than the untrimmed maximum.
func WithTrimWindow(w TrimWindow) SubmitOption {
	return func(c *submitConfig) { c.trims = FixedTrim(w) }
}

// Submit runs admission for file and, when admitted, starts its pipeline.
//
// Checks run in order: size, concurrency, content type, probe, trim. A
// rejected submission creates no task and emits exactly one notice. Once a
// task is created the orchestrator owns file.Path and releases it when no
// longer needed. When the clip is trimmed the task owns the trimmed copy
// instead and file.Path stays with the caller.
func (o *Orchestrator) Submit(ctx context.Context, file SourceFile, opts ...SubmitOption) (MediaTask, error) {
	var cfg submitConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return o.admit(ctx, file, cfg)
}

func (o *Orchestrator) admit(ctx context.Context, file SourceFile, cfg submitConfig) (MediaTask, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return MediaTask{}, ErrClosed
	}
	limits := o.limits
	inFlight := o.tasks.inFlight()
	o.mu.Unlock()

	if file.Size > limits.MaxFileSizeBytes {
		return MediaTask{}, o.rejectTooLarge(file, limits.MaxFileSizeBytes)
	}
	if inFlight >= limits.MaxConcurrentTasks {
		return MediaTask{}, o.reject(file, ReasonConcurrencyLimit,
			fmt.Sprintf("only %d videos can be processed at once", limits.MaxConcurrentTasks))
	}

	mime, err := o.detectMIME(file.Path)
	if err != nil || !media.IsVideoMIME(mime) {
		if err != nil {
			o.logger.Warn("mime detection failed",
				slog.String("file", file.Name),
				slog.String("error", err.Error()),
			)
		}
		return MediaTask{}, o.reject(file, ReasonInvalidMediaType,
			fmt.Sprintf("%s is not a video", file.Name))
	}
	file.MIMEType = mime

	meta, err := o.processor.Probe(ctx, file.Path)
	if err != nil {
		o.logger.Warn("probe failed",
			slog.String("file", file.Name),
			slog.String("error", err.Error()),
		)
		o.notify(Notice{Kind: NoticeProcessingFailed, Message: fmt.Sprintf("%s could not be read", file.Name)})
		return MediaTask{}, fmt.Errorf("probe %s: %w", file.Name, err)
	}

	if !cfg.trimmed && meta.DurationSeconds > limits.NoTrimThresholdSeconds {
		return o.trimAndAdmit(ctx, file, meta.DurationSeconds, limits, cfg)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startLocked(file, "")
}

// trimAndAdmit asks for a window, cuts it out, and admits the cut as the
// task body.
func (o *Orchestrator) trimAndAdmit(ctx context.Context, file SourceFile, duration float64, limits Limits, cfg submitConfig) (MediaTask, error) {
	selector := cfg.trims
	if selector == nil {
		selector = o.trims
	}
	if selector == nil {
		selector = requireTrim{maxSeconds: limits.NoTrimThresholdSeconds}
	}

	window, err := selector.SelectTrim(ctx, file, duration)
	if err != nil {
		return MediaTask{}, err
	}
	if window.Start >= duration {
		return MediaTask{}, fmt.Errorf("%w: start %.1fs is past the end of a %.1fs clip",
			media.ErrInvalidTrimWindow, window.Start, duration)
	}
	window.End = min(window.End, duration)

	o.logger.Info("trimming submission",
		slog.String("file", file.Name),
		slog.Float64("duration_seconds", duration),
		slog.Float64("start", window.Start),
		slog.Float64("end", window.End),
	)

	trimmedPath, err := o.processor.Trim(ctx, file.Path, window.Start, window.End)
	if err != nil {
		return MediaTask{}, fmt.Errorf("trim %s: %w", file.Name, err)
	}

	info, err := os.Stat(trimmedPath)
	if err != nil {
		o.release(trimmedPath)
		return MediaTask{}, fmt.Errorf("stat trimmed file: %w", err)
	}

	trimmed := SourceFile{Path: trimmedPath, Name: file.Name, Size: info.Size()}
	cfg.trimmed = true
	t, err := o.admit(ctx, trimmed, cfg)
	if err != nil {
		o.release(trimmedPath)
		return MediaTask{}, err
	}
	return t, nil
}

// startLocked re-checks capacity, creates the task and launches its
// pipeline. o.mu must be held.
func (o *Orchestrator) startLocked(file SourceFile, retryOf string) (MediaTask, error) {
	if o.closed {
		return MediaTask{}, ErrClosed
	}
	if o.tasks.inFlight() >= o.limits.MaxConcurrentTasks {
		return MediaTask{}, o.reject(file, ReasonConcurrencyLimit,
			fmt.Sprintf("only %d videos can be processed at once", o.limits.MaxConcurrentTasks))
	}

	t := New(file)
	t.RetryOf = retryOf
	// UPLOADING is the creation state; compression starts right away.
	if err := t.TransitionTo(StatusCompressing); err != nil {
		return MediaTask{}, err
	}
	o.tasks.add(t)
	o.observer.TaskUpdated(t.Clone())

	metrics.TasksSubmittedTotal.Inc()
	metrics.TasksInFlight.Inc()

	o.logger.Info("task admitted",
		slog.String("task_id", t.ID),
		slog.String("file", file.Name),
		slog.Int64("size", file.Size),
		slog.String("retry_of", retryOf),
	)

	o.wg.Add(1)
	go o.run(t.ID, file)

	return t.Clone(), nil
}

// reject records one admission failure and returns it as an error.
func (o *Orchestrator) reject(file SourceFile, reason AdmissionReason, msg string) error {
	metrics.AdmissionRejectionsTotal.WithLabelValues(string(reason)).Inc()
	o.logger.Info("submission rejected",
		slog.String("file", file.Name),
		slog.String("reason", string(reason)),
	)
	o.notify(Notice{Kind: NoticeKind(reason), Message: msg})
	return &AdmissionError{Reason: reason, Message: msg}
}

func (o *Orchestrator) rejectTooLarge(file SourceFile, limit int64) error {
	return o.reject(file, ReasonFileTooLarge,
		fmt.Sprintf("%s is %s, the limit is %s", file.Name, formatBytes(file.Size), formatBytes(limit)))
}

// run drives one task through its pipeline. Every state write goes through
// update, which reports false once the task is no longer tracked.
func (o *Orchestrator) run(taskID string, file SourceFile) {
	defer o.wg.Done()

	ctx := o.baseCtx
	logger := o.logger.With(slog.String("task_id", taskID))

	var intermediate string
	defer func() { o.finish(taskID, file.Path, intermediate) }()

	start := time.Now()
	result, err := o.processor.Compress(ctx, file.Path, o.progressFor(taskID))
	if err != nil {
		o.fail(taskID, NoticeCompressionFailed, err.Error())
		return
	}
	if result.Path != file.Path {
		intermediate = result.Path
	}
	logger.Info("compression finished",
		slog.Bool("skipped", result.Skipped),
		slog.Int64("original_bytes", result.OriginalSize),
		slog.Int64("compressed_bytes", result.CompressedSize),
		slog.Duration("elapsed", time.Since(start)),
	)

	if !o.update(taskID, func(t *MediaTask) bool {
		t.Compression = &CompressionStats{
			OriginalSize:   result.OriginalSize,
			CompressedSize: result.CompressedSize,
			Skipped:        result.Skipped,
		}
		if err := t.TransitionTo(StatusUploading); err != nil {
			return false
		}
		t.SetPhase(PhaseUploadingThumbnail)
		return true
	}) {
		return
	}

	thumb, err := o.processor.ExtractThumbnail(ctx, result.Path)
	if err != nil {
		o.fail(taskID, NoticeProcessingFailed, err.Error())
		return
	}
	if !o.tracked(taskID) {
		return
	}

	uploadStart := time.Now()
	thumbURL, err := o.uploader.UploadThumbnail(ctx, taskID+".jpg", thumb)
	if err != nil {
		o.fail(taskID, NoticeUploadFailed, err.Error())
		return
	}
	metrics.UploadDuration.WithLabelValues("thumbnail").Observe(time.Since(uploadStart).Seconds())
	metrics.UploadBytesTotal.WithLabelValues("thumbnail").Add(float64(len(thumb)))

	if !o.update(taskID, func(t *MediaTask) bool {
		t.ThumbnailURL = thumbURL
		t.SetPhase(PhaseUploadingVideo)
		return true
	}) {
		return
	}

	uploadStart = time.Now()
	videoURL, err := o.uploader.UploadVideo(ctx, taskID+".mp4", result.Path, o.progressFor(taskID))
	if err != nil {
		o.fail(taskID, NoticeUploadFailed, err.Error())
		return
	}
	metrics.UploadDuration.WithLabelValues("video").Observe(time.Since(uploadStart).Seconds())
	metrics.UploadBytesTotal.WithLabelValues("video").Add(float64(result.CompressedSize))

	o.complete(taskID, videoURL)
}

func (o *Orchestrator) progressFor(taskID string) media.ProgressFunc {
	return func(percent int) {
		o.update(taskID, func(t *MediaTask) bool { return t.SetProgress(percent) })
	}
}

// update applies fn to a tracked task and publishes the new snapshot when
// fn reports a change. It returns false if the task is gone or terminal.
func (o *Orchestrator) update(taskID string, fn func(t *MediaTask) bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tasks.get(taskID)
	if !ok || t.IsTerminal() {
		return false
	}
	if fn(t) {
		o.observer.TaskUpdated(t.Clone())
	}
	return true
}

func (o *Orchestrator) tracked(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.tasks.get(taskID)
	return ok
}

func (o *Orchestrator) fail(taskID string, kind NoticeKind, msg string) {
	o.mu.Lock()
	t, ok := o.tasks.get(taskID)
	if !ok || t.Fail(msg) != nil {
		o.mu.Unlock()
		return
	}
	o.observer.TaskUpdated(t.Clone())
	name := t.Source.Name
	o.mu.Unlock()

	metrics.TasksFinishedTotal.WithLabelValues(string(StatusFailed)).Inc()
	metrics.TasksInFlight.Dec()

	o.logger.Warn("task failed",
		slog.String("task_id", taskID),
		slog.String("kind", string(kind)),
		slog.String("error", msg),
	)
	o.notify(Notice{
		Kind:      kind,
		TaskID:    taskID,
		Message:   fmt.Sprintf("%s: %s", name, msg),
		Retryable: true,
	})
}

func (o *Orchestrator) complete(taskID, videoURL string) {
	o.mu.Lock()
	t, ok := o.tasks.get(taskID)
	if !ok || t.Complete(videoURL) != nil {
		o.mu.Unlock()
		return
	}
	o.observer.TaskUpdated(t.Clone())
	allDone := o.tasks.allComplete()
	o.mu.Unlock()

	metrics.TasksFinishedTotal.WithLabelValues(string(StatusComplete)).Inc()
	metrics.TasksInFlight.Dec()

	o.logger.Info("task complete",
		slog.String("task_id", taskID),
		slog.String("video_url", videoURL),
	)

	o.inserter.InsertVideoReference(videoURL)

	if allDone {
		o.notify(Notice{Kind: NoticeAllTasksComplete, Message: "All videos are ready"})
	}
}

// finish releases the compressed intermediate and, when nothing can retry
// from it anymore, the source file.
func (o *Orchestrator) finish(taskID, sourcePath, intermediate string) {
	if intermediate != "" {
		o.release(intermediate)
	}

	o.mu.Lock()
	t, tracked := o.tasks.get(taskID)
	done := !tracked || t.Status == StatusComplete
	shared := o.tasks.referencesPath(sourcePath, taskID)
	o.mu.Unlock()

	if done && !shared {
		o.release(sourcePath)
	}
}

// Cancel stops tracking a task. Running work is not interrupted; its
// results are discarded when they arrive.
func (o *Orchestrator) Cancel(taskID string) error {
	o.mu.Lock()
	t, ok := o.tasks.remove(taskID)
	if !ok {
		o.mu.Unlock()
		return ErrTaskNotFound
	}
	o.observer.TaskRemoved(taskID)
	wasInFlight := t.IsInFlight()
	releasable := !wasInFlight && !o.tasks.referencesPath(t.Source.Path, taskID)
	o.mu.Unlock()

	if wasInFlight {
		metrics.TasksInFlight.Dec()
	}
	if releasable {
		o.release(t.Source.Path)
	}

	o.logger.Info("task cancelled",
		slog.String("task_id", taskID),
		slog.String("status", string(t.Status)),
	)
	return nil
}

// CancelAll stops tracking every task and returns how many were removed.
func (o *Orchestrator) CancelAll() int {
	o.mu.Lock()
	removed := o.tasks.removeAll()
	for _, t := range removed {
		o.observer.TaskRemoved(t.ID)
	}
	o.mu.Unlock()

	o.releaseTerminal(removed)
	o.logger.Info("all tasks cancelled", slog.Int("count", len(removed)))
	return len(removed)
}

// DismissAll clears the task list once every task is terminal.
func (o *Orchestrator) DismissAll() (int, error) {
	o.mu.Lock()
	if n := o.tasks.inFlight(); n > 0 {
		o.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrTasksInFlight, n)
	}
	removed := o.tasks.removeAll()
	for _, t := range removed {
		o.observer.TaskRemoved(t.ID)
	}
	o.mu.Unlock()

	o.releaseTerminal(removed)
	return len(removed), nil
}

// releaseTerminal frees sources of removed terminal tasks. Sources still
// read by a removed in-flight pipeline are left for that pipeline.
func (o *Orchestrator) releaseTerminal(removed []*MediaTask) {
	busy := make(map[string]bool)
	for _, t := range removed {
		if t.IsInFlight() {
			busy[t.Source.Path] = true
			metrics.TasksInFlight.Dec()
		}
	}
	for _, t := range removed {
		if t.IsTerminal() && !busy[t.Source.Path] {
			o.release(t.Source.Path)
		}
	}
}

// Retry replaces a failed task with a fresh one built from the same source.
// The new task starts again from compression. Size and concurrency are
// checked against the current limits; the content type was already
// accepted and does not depend on them.
func (o *Orchestrator) Retry(ctx context.Context, taskID string) (MediaTask, error) {
	if err := ctx.Err(); err != nil {
		return MediaTask{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return MediaTask{}, ErrClosed
	}
	old, ok := o.tasks.get(taskID)
	if !ok {
		return MediaTask{}, ErrTaskNotFound
	}
	if old.Status != StatusFailed {
		return MediaTask{}, fmt.Errorf("%w: task is %s", ErrNotRetryable, old.Status)
	}
	if old.Source.Size > o.limits.MaxFileSizeBytes {
		return MediaTask{}, o.rejectTooLarge(old.Source, o.limits.MaxFileSizeBytes)
	}
	if o.tasks.inFlight() >= o.limits.MaxConcurrentTasks {
		return MediaTask{}, o.reject(old.Source, ReasonConcurrencyLimit,
			fmt.Sprintf("only %d videos can be processed at once", o.limits.MaxConcurrentTasks))
	}

	o.tasks.remove(taskID)
	o.observer.TaskRemoved(taskID)

	return o.startLocked(old.Source, taskID)
}

// Tasks returns snapshots of every tracked task in submission order.
func (o *Orchestrator) Tasks() []MediaTask {
	o.mu.Lock()
	defer o.mu.Unlock()

	list := o.tasks.list()
	out := make([]MediaTask, 0, len(list))
	for _, t := range list {
		out = append(out, t.Clone())
	}
	return out
}

// Task returns a snapshot of one task.
func (o *Orchestrator) Task(taskID string) (MediaTask, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tasks.get(taskID)
	if !ok {
		return MediaTask{}, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// CanPublish reports whether no task is compressing or uploading.
func (o *Orchestrator) CanPublish() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tasks.inFlight() == 0
}

// Status derives the aggregate summary.
func (o *Orchestrator) Status() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	var s Summary
	progress := 0
	for _, t := range o.tasks.list() {
		s.Total++
		switch {
		case t.IsInFlight():
			s.InFlight++
			progress += t.Progress
		case t.Status == StatusFailed:
			s.Failed++
		case t.Status == StatusComplete:
			s.Completed++
		}
	}
	if s.InFlight > 0 {
		s.Progress = progress / s.InFlight
	}
	s.CanPublish = s.InFlight == 0
	s.ShowProgress = s.InFlight > 0
	s.AllowCancel = s.InFlight > 0
	s.AllowDismiss = s.Total > 0 && s.InFlight == 0
	return s
}

// Limits returns the current admission limits.
func (o *Orchestrator) Limits() Limits {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.limits
}

// SetLimits changes admission limits for later submissions.
func (o *Orchestrator) SetLimits(l Limits) error {
	if err := l.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.limits = l
	o.mu.Unlock()
	return nil
}

// Close stops admitting work and waits for running pipelines. When ctx
// expires first, running pipelines are interrupted.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.stop()
		return nil
	case <-ctx.Done():
		o.stop()
		return fmt.Errorf("waiting for pipelines: %w", ctx.Err())
	}
}

func (o *Orchestrator) notify(n Notice) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	o.notifier.Notify(n)
}

func (o *Orchestrator) release(path string) {
	if path == "" {
		return
	}
	if err := o.scratch.CleanupTemp(context.Background(), []string{path}); err != nil {
		o.logger.Warn("failed to release temp file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// removeFiles is the default Scratch.
type removeFiles struct{}

func (removeFiles) CleanupTemp(_ context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
