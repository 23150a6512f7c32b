// Package metrics provides Prometheus instrumentation for the media orchestrator.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_orchestrator_". Mount promhttp.Handler() to expose
// them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_orchestrator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_orchestrator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Task metrics
var (
	TasksSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_orchestrator_tasks_submitted_total",
			Help: "Total number of tasks admitted into the pipeline",
		},
	)

	AdmissionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_orchestrator_admission_rejections_total",
			Help: "Total number of submissions rejected before a task was created",
		},
		[]string{"reason"},
	)

	TasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_orchestrator_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal status",
		},
		[]string{"status"},
	)

	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_orchestrator_tasks_in_flight",
			Help: "Number of tasks currently compressing or uploading",
		},
	)
)

// Compression metrics
var (
	CompressionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_orchestrator_compression_duration_seconds",
			Help:    "Video re-encode duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	CompressionsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_orchestrator_compressions_skipped_total",
			Help: "Total number of sources that already fit the target profile",
		},
	)

	CompressionBytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_orchestrator_compression_bytes_saved_total",
			Help: "Total bytes removed by re-encoding",
		},
	)

	TrimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_orchestrator_trims_total",
			Help: "Total number of stream-copy trims by status",
		},
		[]string{"status"},
	)
)

// Upload metrics
var (
	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_orchestrator_upload_duration_seconds",
			Help:    "Upload duration in seconds by object kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_orchestrator_upload_bytes_total",
			Help: "Total bytes uploaded by object kind",
		},
		[]string{"kind"},
	)
)

// Event stream metrics
var (
	EventClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_orchestrator_event_clients_connected",
			Help: "Number of connected websocket clients",
		},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_orchestrator_events_dropped_total",
			Help: "Total number of events dropped because a buffer was full",
		},
	)
)
