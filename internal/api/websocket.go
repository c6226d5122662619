package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// handleEvents streams the caller's task-update events as JSON text frames
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", zap.Error(err), zap.String("user_id", userID))
		return
	}
	defer ws.CloseNow()

	events, unsubscribe := h.subscriber.Subscribe(userID)
	defer unsubscribe()

	// Clients only listen; CloseRead handles their control frames.
	ctx := ws.CloseRead(r.Context())
	h.logger.Debug("Event stream opened", zap.String("user_id", userID))

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Event stream closed", zap.String("user_id", userID))
			return
		case evt, ok := <-events:
			if !ok {
				ws.Close(websocket.StatusGoingAway, "stream ended")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, ws, evt)
			cancel()
			if err != nil {
				h.logger.Debug("WebSocket write error", zap.Error(err), zap.String("user_id", userID))
				return
			}
		}
	}
}
