package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/media-orchestrator/internal/document"
	"github.com/maauso/media-orchestrator/internal/media"
	"github.com/maauso/media-orchestrator/internal/storage"
	"github.com/maauso/media-orchestrator/internal/task"
	"github.com/maauso/media-orchestrator/internal/task/id"
)

// uploadField is the multipart field carrying the video.
const uploadField = "file"

// UploadStore keeps request bodies on disk until the orchestrator takes
// them over.
type UploadStore interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)
	CleanupTemp(ctx context.Context, paths []string) error
}

// ReadinessChecker reports whether the media engine can run.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	tasks     *task.Orchestrator
	uploads   UploadStore
	draft     *document.Draft
	engine    ReadinessChecker
	validator *validator.Validate
	logger    *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithReadinessChecker makes GET /health report engine availability.
func WithReadinessChecker(rc ReadinessChecker) HandlerOption {
	return func(h *Handlers) {
		h.engine = rc
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(tasks *task.Orchestrator, uploads UploadStore, draft *document.Draft, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		tasks:     tasks,
		uploads:   uploads,
		draft:     draft,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}
	if err := h.engine.Ready(r.Context()); err != nil {
		h.logger.Warn("engine not ready", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Engine: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Engine: "ready"})
}

// CreateTask handles POST /tasks requests. The body is multipart with the
// video in the "file" field. trim_start and trim_end query parameters
// answer the trim question for long clips up front.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	params, err := parseSubmitParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PARAMETERS")
		return
	}
	if err := h.validator.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	var opts []task.SubmitOption
	switch {
	case params.TrimStart != nil && params.TrimEnd != nil:
		if *params.TrimEnd <= *params.TrimStart {
			writeError(w, http.StatusBadRequest, "trim_end must be after trim_start", "INVALID_TRIM_WINDOW")
			return
		}
		opts = append(opts, task.WithTrimWindow(task.TrimWindow{Start: *params.TrimStart, End: *params.TrimEnd}))
	case params.TrimStart != nil || params.TrimEnd != nil:
		writeError(w, http.StatusBadRequest, "trim_start and trim_end must be given together", "INVALID_TRIM_WINDOW")
		return
	}

	file, err := h.receiveUpload(r)
	if err != nil {
		h.logger.Warn("failed to receive upload", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_UPLOAD")
		return
	}

	created, err := h.tasks.Submit(r.Context(), file, opts...)
	if err != nil || created.Source.Path != file.Path {
		// Not handed over: rejected, or a trimmed copy was admitted instead.
		if cerr := h.uploads.CleanupTemp(context.WithoutCancel(r.Context()), []string{file.Path}); cerr != nil {
			h.logger.Warn("failed to remove upload",
				slog.String("path", file.Path),
				slog.String("error", cerr.Error()),
			)
		}
	}
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, newTaskResponse(created))
}

// receiveUpload streams the multipart file part to a temp file. Bytes past
// the size limit are counted but not stored, so oversized files are still
// reported with their real size.
func (h *Handlers) receiveUpload(r *http.Request) (task.SourceFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return task.SourceFile{}, fmt.Errorf("expected multipart body: %w", err)
	}

	limit := h.tasks.Limits().MaxFileSizeBytes
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return task.SourceFile{}, fmt.Errorf("missing %q field", uploadField)
		}
		if err != nil {
			return task.SourceFile{}, fmt.Errorf("read multipart body: %w", err)
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		counter := storage.NewCountingReader(io.LimitReader(part, limit+1))
		path, err := h.uploads.SaveTemp(r.Context(), part.FileName(), counter)
		if err != nil {
			_ = part.Close()
			return task.SourceFile{}, fmt.Errorf("store upload: %w", err)
		}
		size := counter.Count()
		if size > limit {
			rest, err := io.Copy(io.Discard, part)
			if err != nil {
				_ = h.uploads.CleanupTemp(context.WithoutCancel(r.Context()), []string{path})
				return task.SourceFile{}, fmt.Errorf("read upload: %w", err)
			}
			size += rest
		}
		_ = part.Close()

		return task.SourceFile{Path: path, Name: part.FileName(), Size: size}, nil
	}
}

// ListTasks handles GET /tasks requests.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.tasks.Tasks()
	resp := TaskListResponse{
		Tasks:   make([]TaskResponse, 0, len(tasks)),
		Summary: h.tasks.Status(),
	}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTask handles GET /tasks/{id} requests.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.Task(taskID)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResponse(t))
}

// CancelTask handles DELETE /tasks/{id} requests. It also removes failed
// and completed tasks from the list.
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Cancel(taskID); err != nil {
		h.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelAll handles DELETE /tasks requests.
func (h *Handlers) CancelAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CountResponse{Count: h.tasks.CancelAll()})
}

// RetryTask handles POST /tasks/{id}/retry requests.
func (h *Handlers) RetryTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.Retry(r.Context(), taskID)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newTaskResponse(t))
}

// DismissAll handles POST /tasks/dismiss requests.
func (h *Handlers) DismissAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.tasks.DismissAll()
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// PublishStatus handles GET /publish-status requests.
func (h *Handlers) PublishStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.Status())
}

// GetLimits handles GET /limits requests.
func (h *Handlers) GetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.Limits())
}

// UpdateLimits handles PUT /limits requests. New limits apply to later
// submissions only.
func (h *Handlers) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	var req LimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	limits := task.Limits{
		MaxFileSizeBytes:       req.MaxFileSizeBytes,
		MaxConcurrentTasks:     req.MaxConcurrentTasks,
		NoTrimThresholdSeconds: req.NoTrimThresholdSeconds,
	}
	if err := h.tasks.SetLimits(limits); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	h.logger.Info("limits updated",
		slog.Int64("max_file_size_bytes", limits.MaxFileSizeBytes),
		slog.Int("max_concurrent_tasks", limits.MaxConcurrentTasks),
		slog.Float64("no_trim_threshold_seconds", limits.NoTrimThresholdSeconds),
	)
	writeJSON(w, http.StatusOK, limits)
}

// DocumentVideos handles GET /document/videos requests.
func (h *Handlers) DocumentVideos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DocumentResponse{Videos: h.draft.References()})
}

func (h *Handlers) taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := r.PathValue("id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required", "MISSING_TASK_ID")
		return "", false
	}
	if !id.Valid(taskID) {
		writeError(w, http.StatusBadRequest, "malformed task ID", "INVALID_TASK_ID")
		return "", false
	}
	return taskID, true
}

// writeTaskError maps orchestrator and engine errors to HTTP responses.
func (h *Handlers) writeTaskError(w http.ResponseWriter, err error) {
	var trimErr *task.TrimRequiredError
	if errors.As(err, &trimErr) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:           trimErr.Error(),
			Code:            "TRIM_REQUIRED",
			DurationSeconds: trimErr.DurationSeconds,
			MaxSeconds:      trimErr.MaxSeconds,
		})
		return
	}

	if reason, ok := task.AdmissionReasonOf(err); ok {
		switch reason {
		case task.ReasonFileTooLarge:
			writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "FILE_TOO_LARGE")
		case task.ReasonConcurrencyLimit:
			writeError(w, http.StatusTooManyRequests, err.Error(), "CONCURRENCY_LIMIT_REACHED")
		case task.ReasonInvalidMediaType:
			writeError(w, http.StatusUnsupportedMediaType, err.Error(), "INVALID_MEDIA_TYPE")
		default:
			writeError(w, http.StatusBadRequest, err.Error(), "ADMISSION_REJECTED")
		}
		return
	}

	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
	case errors.Is(err, task.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error(), "NOT_RETRYABLE")
	case errors.Is(err, task.ErrTasksInFlight):
		writeError(w, http.StatusConflict, err.Error(), "TASKS_IN_FLIGHT")
	case errors.Is(err, task.ErrTrimCancelled):
		writeError(w, http.StatusBadRequest, err.Error(), "TRIM_CANCELLED")
	case errors.Is(err, media.ErrTrimWindowTooLong), errors.Is(err, media.ErrInvalidTrimWindow):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_TRIM_WINDOW")
	case errors.Is(err, media.ErrUnreadableMedia):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "UNREADABLE_MEDIA")
	case errors.Is(err, media.ErrEngineUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error(), "ENGINE_UNAVAILABLE")
	case errors.Is(err, task.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down", "SHUTTING_DOWN")
	default:
		h.logger.Error("task operation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func parseSubmitParams(r *http.Request) (SubmitParams, error) {
	var p SubmitParams
	q := r.URL.Query()
	for _, f := range []struct {
		key string
		dst **float64
	}{
		{"trim_start", &p.TrimStart},
		{"trim_end", &p.TrimEnd},
	} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return SubmitParams{}, fmt.Errorf("%s must be a number of seconds", f.key)
		}
		*f.dst = &v
	}
	return p, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
