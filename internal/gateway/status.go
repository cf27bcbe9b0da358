package gateway

import (
	"net/http"
	"time"

	"github.com/arenvik/warden/internal/core"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  time.Duration `json:"uptime_seconds"`
	Tools   int           `json:"tools"`
	Modules []string      `json:"modules"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: time.Since(g.startedAt).Truncate(time.Second),
		}

		if g.registry != nil {
			resp.Tools = len(g.registry.Names())
		}

		mods := core.GetModules()
		resp.Modules = make([]string, 0, len(mods))
		for _, m := range mods {
			resp.Modules = append(resp.Modules, string(m.ID))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
