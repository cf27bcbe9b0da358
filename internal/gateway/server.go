package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public: no auth required.
	r.Get("/health", g.handleHealth())
	r.Get("/metrics", g.handleMetrics())

	// Webhooks: own HMAC auth per source.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Event stream WebSocket: token auth handled by the channel module.
	if g.events != nil {
		r.Handle("/ws/events", g.events)
	}

	// Approval API: auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.limiter, g.logger))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/tools", g.handleListTools())
				r.Post("/invoke", g.handleInvoke())
				r.Get("/pending", g.handleListPending())
				r.Post("/pending/{id}/resolve", g.handleResolve())
				r.Get("/audit", g.handleAudit())
				r.Get("/policy/{user}", g.handleGetPolicy())
				r.Put("/policy/{user}", g.handleSetPolicy())
			})
		})
	}

	return r
}
