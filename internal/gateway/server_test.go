package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arenvik/warden/internal/metrics"
)

func TestHealth_OK(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Tools != 3 {
		t.Errorf("tools = %d, want 3", resp.Tools)
	}
}

func TestHealth_DegradedWithoutGate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gw.gate = nil
	handler := f.gw.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp StatusResponse
	decode(t, rr, &resp)
	if resp.Tools != 3 {
		t.Errorf("tools = %d, want 3", resp.Tools)
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.GateDecisions.WithLabelValues(metrics.OutcomeExecuted).Inc()
	f.gw.gatherer = reg
	handler := f.gw.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "warden_gate_decisions_total") {
		t.Errorf("exposition missing gate decision counter:\n%s", rr.Body.String())
	}
}
