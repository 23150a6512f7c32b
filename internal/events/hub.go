// Package events pushes task state and notices to browsers over WebSocket.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/maauso/media-orchestrator/internal/metrics"
	"github.com/maauso/media-orchestrator/internal/task"
)

// Message types.
const (
	TypeSnapshot    = "snapshot"
	TypeTaskUpdated = "task_updated"
	TypeTaskRemoved = "task_removed"
	TypeNotice      = "notice"
)

// Message is one event sent to clients.
type Message struct {
	Type   string           `json:"type"`
	Task   *task.MediaTask  `json:"task,omitempty"`
	Tasks  []task.MediaTask `json:"tasks,omitempty"`
	TaskID string           `json:"task_id,omitempty"`
	Notice *task.Notice     `json:"notice,omitempty"`
	Time   time.Time        `json:"time"`
}

// broadcastBuffer bounds the backlog between the orchestrator and Run.
const broadcastBuffer = 256

// registration adds a client and optionally queues its starting snapshot.
type registration struct {
	client   *Client
	snapshot SnapshotFunc
}

// Hub maintains the set of active clients and broadcasts messages to them.
// It implements task.Observer and task.Notifier; neither ever blocks.
type Hub struct {
	clients map[*Client]struct{}

	// Register requests from clients
	register chan registration

	// Unregister requests from clients
	unregister chan *Client

	broadcast chan *Message

	// done is closed when Run returns.
	done chan struct{}

	mu sync.RWMutex
}

var (
	_ task.Observer = (*Hub)(nil)
	_ task.Notifier = (*Hub)(nil)
)

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan registration),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, after
// disconnecting every client. Run must only be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case reg := <-h.register:
			// The snapshot is queued before the client joins, so every
			// broadcast handled after this point follows it.
			if reg.snapshot != nil {
				reg.client.send <- &Message{Type: TypeSnapshot, Tasks: reg.snapshot(), Time: time.Now().UTC()}
			}
			h.mu.Lock()
			h.clients[reg.client] = struct{}{}
			h.mu.Unlock()
			metrics.EventClientsConnected.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, close the connection
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.EventClientsConnected.Dec()
}

// Publish queues msg for every client. When the backlog is full the message
// is dropped; clients resynchronise from the next update or on reconnect.
func (h *Hub) Publish(msg *Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	select {
	case h.broadcast <- msg:
	default:
		metrics.EventsDroppedTotal.Inc()
	}
}

// TaskUpdated implements task.Observer.
func (h *Hub) TaskUpdated(t task.MediaTask) {
	h.Publish(&Message{Type: TypeTaskUpdated, Task: &t})
}

// TaskRemoved implements task.Observer.
func (h *Hub) TaskRemoved(taskID string) {
	h.Publish(&Message{Type: TypeTaskRemoved, TaskID: taskID})
}

// Notify implements task.Notifier.
func (h *Hub) Notify(n task.Notice) {
	h.Publish(&Message{Type: TypeNotice, Notice: &n})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
