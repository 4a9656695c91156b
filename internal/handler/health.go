package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionStatus reports an optional connection, such as the event mirror.
type ConnectionStatus interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db     Pinger
	events ConnectionStatus
}

// NewHealthHandler creates a new health handler. events may be nil when the
// event mirror is disabled.
func NewHealthHandler(db Pinger, events ConnectionStatus) *HealthHandler {
	return &HealthHandler{
		db:     db,
		events: events,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. Only the history database gates readiness; the
// event mirror is reported but optional.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "history database unavailable",
		})
		return
	}

	events := "disabled"
	if h.events != nil {
		events = "disconnected"
		if h.events.IsConnected() {
			events = "connected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"events": events,
	})
}
