package events

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/maauso/media-orchestrator/internal/task"
)

// SnapshotFunc returns the tasks a new client starts from.
type SnapshotFunc func() []task.MediaTask

// Handler upgrades HTTP requests to event streams.
type Handler struct {
	hub      *Hub
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler. Origins are checked against
// allowedOrigins; "*" allows any.
func NewHandler(hub *Hub, snapshot SnapshotFunc, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:      hub,
		snapshot: snapshot,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWS handles WebSocket requests from clients. The first message on
// every connection is a snapshot of all tracked tasks; the hub takes it
// while registering the client, so no update falls between the two.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, conn, h.logger)
	select {
	case h.hub.register <- registration{client: client, snapshot: h.snapshot}:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}

	// Start the client's read and write pumps
	go client.WritePump()
	go client.ReadPump()
}
