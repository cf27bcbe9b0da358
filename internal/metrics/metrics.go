// Package metrics defines the Prometheus collectors shared by the gate,
// the dispatcher, and the HTTP gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for gate decisions and resolutions.
const (
	OutcomeExecuted = "executed"
	OutcomeDeferred = "deferred"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeError    = "error"
)

// Metrics holds warden's Prometheus collectors. Constructed once at startup
// against an explicit registry and passed by reference.
type Metrics struct {
	GateDecisions *prometheus.CounterVec
	Resolutions   *prometheus.CounterVec
	SweptExpired  prometheus.Counter
	PendingOpen   prometheus.Gauge
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Gate decisions by outcome.",
		}, []string{"outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "dispatch",
			Name:      "resolutions_total",
			Help:      "Pending-action resolutions by terminal outcome.",
		}, []string{"outcome"}),
		SweptExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "dispatch",
			Name:      "swept_expired_total",
			Help:      "Pending actions expired by the sweep.",
		}),
		PendingOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "ledger",
			Name:      "pending_open",
			Help:      "Pending actions currently awaiting a decision.",
		}),
	}
	reg.MustRegister(m.GateDecisions, m.Resolutions, m.SweptExpired, m.PendingOpen)
	return m
}

// NewUnregistered creates collectors without registering them, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
