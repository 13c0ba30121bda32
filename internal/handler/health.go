package handler

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// ComponentStatus is the readiness result for one dependency.
type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadinessResponse is the body of GET /health/ready.
type ReadinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentStatus `json:"checks"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version string
	checks  []Check
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  checks,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{
		Status: "ready",
		Checks: make(map[string]ComponentStatus, len(h.checks)),
	}
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			resp.Checks[c.Name] = ComponentStatus{Status: "unhealthy", Error: err.Error()}
			resp.Status = "not_ready"
			continue
		}
		resp.Checks[c.Name] = ComponentStatus{Status: "healthy"}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
