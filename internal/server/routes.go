package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Events serves GET /events. Nil leaves the route unregistered.
	Events http.HandlerFunc
	// MediaDir is served below /media/ when set, for locally published files.
	MediaDir string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /tasks", h.CreateTask)
	mux.HandleFunc("GET /tasks", h.ListTasks)
	mux.HandleFunc("DELETE /tasks", h.CancelAll)
	mux.HandleFunc("POST /tasks/dismiss", h.DismissAll)
	mux.HandleFunc("GET /tasks/{id}", h.GetTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.CancelTask)
	mux.HandleFunc("POST /tasks/{id}/retry", h.RetryTask)

	mux.HandleFunc("GET /publish-status", h.PublishStatus)
	mux.HandleFunc("GET /limits", h.GetLimits)
	mux.HandleFunc("PUT /limits", h.UpdateLimits)
	mux.HandleFunc("GET /document/videos", h.DocumentVideos)

	if cfg.Events != nil {
		mux.HandleFunc("GET /events", cfg.Events)
	}
	if cfg.MediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
		MetricsMiddleware,
	)

	return chain(mux)
}
