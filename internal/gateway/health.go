package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Tools  int    `json:"tools"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the approval plumbing is wired, 503 when the gate or
// dispatcher service is missing.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
		}

		if g.registry != nil {
			resp.Tools = len(g.registry.Names())
		}

		if g.gate == nil || g.approvals == nil {
			resp.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
