// Package checkout provides WebSocket event broadcasting for real-time
// attempt-state updates.
package checkout

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AttemptEvent is one attempt-state transition streamed to subscribers.
type AttemptEvent struct {
	AttemptID string        `json:"attempt_id"`
	OrderID   string        `json:"order_id"`
	Status    AttemptStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
}

// EventBroadcaster manages WebSocket connections and broadcasts attempt
// events.
type EventBroadcaster struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]bool // attemptID -> connections
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		connections: make(map[string]map[*websocket.Conn]bool),
	}
}

// Subscribe registers a WebSocket connection for an attempt.
func (b *EventBroadcaster) Subscribe(attemptID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connections[attemptID] == nil {
		b.connections[attemptID] = make(map[*websocket.Conn]bool)
	}
	b.connections[attemptID][conn] = true
}

// Unsubscribe removes a WebSocket connection from all attempts.
func (b *EventBroadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for attemptID, conns := range b.connections {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(b.connections, attemptID)
		}
	}
}

// Broadcast sends an attempt event to all subscribers of the attempt.
func (b *EventBroadcaster) Broadcast(event *AttemptEvent) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	conns, exists := b.connections[event.AttemptID]
	if !exists || len(conns) == 0 {
		return
	}

	// Serialize event once
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal attempt event", "error", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("failed to send message to websocket client",
				"error", err,
				"attempt_id", event.AttemptID,
			)
			// Connection will be cleaned up when client disconnects
		}
	}
}

// ConnectionCount returns the number of active connections for an attempt.
func (b *EventBroadcaster) ConnectionCount(attemptID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if conns, exists := b.connections[attemptID]; exists {
		return len(conns)
	}
	return 0
}
