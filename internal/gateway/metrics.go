package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleMetrics serves the Prometheus exposition endpoint. The gatherer is
// resolved from the service registry at Start; without one the process-wide
// default registry is exposed.
func (g *Gateway) handleMetrics() http.HandlerFunc {
	gatherer := g.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return h.ServeHTTP
}
