// Package api provides HTTP handlers for attempt event WebSocket subscriptions.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/storefront/internal/checkout"
	"github.com/onnwee/storefront/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the storefront domain list lands in config
		return true
	},
}

// AttemptEventsHandlers holds dependencies for WebSocket handlers.
type AttemptEventsHandlers struct {
	svc         *checkout.Service
	broadcaster *checkout.EventBroadcaster
}

// NewAttemptEventsHandlers creates a new AttemptEventsHandlers instance.
func NewAttemptEventsHandlers(svc *checkout.Service, broadcaster *checkout.EventBroadcaster) *AttemptEventsHandlers {
	return &AttemptEventsHandlers{
		svc:         svc,
		broadcaster: broadcaster,
	}
}

// SubscribeToAttemptEvents handles WebSocket connections for real-time
// payment attempt status updates.
// GET /checkout/{id}/events
func (h *AttemptEventsHandlers) SubscribeToAttemptEvents(w http.ResponseWriter, r *http.Request, attemptID string) {
	ctx := r.Context()

	// Verify the attempt exists before upgrading
	if _, err := h.svc.Snapshot(attemptID); err != nil {
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Payment attempt not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection",
			"error", err,
			"attempt_id", attemptID,
		)
		return
	}

	h.broadcaster.Subscribe(attemptID, conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to attempt events",
		"attempt_id", attemptID,
		"request_id", requestID,
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"attempt_id", attemptID,
			"request_id", requestID,
		)
	}()

	// Keep connection alive - read messages to detect disconnection.
	// Clients don't send anything; the read loop only notices closure.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly",
					"error", err,
					"attempt_id", attemptID,
				)
			}
			break
		}
	}
}
