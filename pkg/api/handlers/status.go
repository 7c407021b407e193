package handlers

import (
	"net/http"
	"time"
)

// StatusHandler serves the server status summary.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// Status handles GET /status. Reports the engine state, uptime, open
// session count and the list of online users.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}

	online := h.source.OnlineUsers()

	writeJSON(w, http.StatusOK, okResponse(map[string]any{
		"state":           h.source.State(),
		"uptime_seconds":  int64(time.Since(h.source.StartedAt()).Seconds()),
		"active_sessions": h.source.ActiveSessions(),
		"online_users":    online,
		"online_count":    len(online),
	}))
}
