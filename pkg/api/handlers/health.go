package handlers

import (
	"net/http"
	"time"
)

// StatusSource is the view of the running chat server the management API
// needs. The engine and presence registry satisfy it through a thin
// adapter wired at startup.
type StatusSource interface {
	// State returns the engine lifecycle state ("running", "draining",
	// "stopped").
	State() string

	// ActiveSessions returns the number of open connections.
	ActiveSessions() int32

	// StartedAt returns when the listener was bound.
	StartedAt() time.Time

	// OnlineUsers returns the sorted list of authenticated usernames.
	OnlineUsers() []string
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	source StatusSource
}

// NewHealthHandler creates a health handler. The source may be nil, in
// which case readiness reports unhealthy.
func NewHealthHandler(source StatusSource) *HealthHandler {
	return &HealthHandler{source: source}
}

// Liveness handles GET /health. Always succeeds while the process serves
// HTTP, for use as a liveness probe.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "chatd",
	}))
}

// Readiness handles GET /health/ready. Ready means the chat listener is
// up and still accepting connections; a draining or stopped server is not
// ready so load balancers stop routing to it during shutdown.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}

	state := h.source.State()
	if state != "running" {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server is "+state))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"state":           state,
		"active_sessions": h.source.ActiveSessions(),
	}))
}
