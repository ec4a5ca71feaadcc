package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

var heartbeatInterval = 25 * time.Second

// StreamEvents streams the caller's booking notifications. Admins may pass
// ?session_id= to follow every notification of one session instead.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	const op = "StreamEvents"
	caller := auth.UserID(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(op+" failed", "streaming unsupported"))
		return
	}

	ctx := r.Context()
	var events <-chan models.Notification
	topic := "user:" + caller
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if !h.isAdmin(caller) {
			h.forbidden(w, op, caller)
			return
		}
		topic = "session:" + sessionID
		events = h.Events.SubscribeToSession(ctx, sessionID)
	} else {
		events = h.Events.SubscribeToUser(ctx, caller)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"stream\":%q}\n\n", topic)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to %s", topic))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case n, ok := <-events:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for %s", topic))
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize notification %s: %v", n.ID, err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, n.Kind, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from %s", topic))
			return
		}
	}
}
