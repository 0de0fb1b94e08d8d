package server

import "net/http"

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func (h *HealthHandler) Routes() []Route {
	return []Route{{Method: http.MethodGet, Path: "/health", Handler: http.HandlerFunc(h.health)}}
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
