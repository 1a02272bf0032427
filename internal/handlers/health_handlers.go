package handlers

import "net/http"

type HealthHandlers struct {
	connectionCount func() int
}

func NewHealthHandlers(connectionCount func() int) *HealthHandlers {
	return &HealthHandlers{connectionCount: connectionCount}
}

func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"app":         "room-coordinator",
		"connections": h.connectionCount(),
	})
}
