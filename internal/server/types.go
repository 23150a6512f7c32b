// Package server provides the HTTP server for the media orchestrator.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/media-orchestrator/internal/document"
	"github.com/maauso/media-orchestrator/internal/task"
)

// SubmitParams are the query parameters accepted by POST /tasks.
type SubmitParams struct {
	// TrimStart is where the kept window starts, in seconds.
	TrimStart *float64 `validate:"omitempty,gte=0"`
	// TrimEnd is where the kept window ends, in seconds.
	TrimEnd *float64 `validate:"omitempty,gt=0"`
}

// TaskResponse is the HTTP representation of a media task.
type TaskResponse struct {
	ID           string                 `json:"id"`
	FileName     string                 `json:"file_name"`
	FileSize     int64                  `json:"file_size"`
	MIMEType     string                 `json:"mime_type,omitempty"`
	Status       string                 `json:"status"`
	Phase        string                 `json:"phase"`
	Progress     int                    `json:"progress"`
	ThumbnailURL string                 `json:"thumbnail_url,omitempty"`
	VideoURL     string                 `json:"video_url,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Retryable    bool                   `json:"retryable"`
	Compression  *task.CompressionStats `json:"compression,omitempty"`
	RetryOf      string                 `json:"retry_of,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

func newTaskResponse(t task.MediaTask) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID,
		FileName:     t.Source.Name,
		FileSize:     t.Source.Size,
		MIMEType:     t.Source.MIMEType,
		Status:       string(t.Status),
		Phase:        string(t.Phase),
		Progress:     t.Progress,
		ThumbnailURL: t.ThumbnailURL,
		VideoURL:     t.VideoURL,
		Error:        t.Error,
		Retryable:    t.Status == task.StatusFailed,
		Compression:  t.Compression,
		RetryOf:      t.RetryOf,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// TaskListResponse is the HTTP response for listing tasks.
type TaskListResponse struct {
	Tasks   []TaskResponse `json:"tasks"`
	Summary task.Summary   `json:"summary"`
}

// CountResponse reports how many tasks an operation affected.
type CountResponse struct {
	Count int `json:"count"`
}

// LimitsRequest is the HTTP request body for changing admission limits.
type LimitsRequest struct {
	MaxFileSizeBytes       int64   `json:"max_file_size_bytes" validate:"required,gt=0"`
	MaxConcurrentTasks     int     `json:"max_concurrent_tasks" validate:"required,min=1,max=64"`
	NoTrimThresholdSeconds float64 `json:"no_trim_threshold_seconds" validate:"required,gt=0"`
}

// DocumentResponse lists the videos attached to the draft.
type DocumentResponse struct {
	Videos []document.VideoReference `json:"videos"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// DurationSeconds and MaxSeconds accompany TRIM_REQUIRED.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	MaxSeconds      float64 `json:"max_seconds,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Engine is "ready" or "unavailable".
	Engine string `json:"engine,omitempty"`
}
