package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"drunc.client/internal/core/services"
	"google.golang.org/grpc/connectivity"
)

type fixedConn connectivity.State

func (c fixedConn) GetState() connectivity.State { return connectivity.State(c) }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("broker gone") }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbes(t *testing.T) {
	health := services.NewHealthService("test")
	health.AddConnection("controller", fixedConn(connectivity.Ready))
	s := NewServer(health)

	if rec := get(t, s.Handler(), "/health/live"); rec.Code != http.StatusOK {
		t.Errorf("Expected live 200, got %d", rec.Code)
	}
	rec := get(t, s.Handler(), "/health/ready")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("Expected ready ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadinessFailsOnDeadConnection(t *testing.T) {
	health := services.NewHealthService("test")
	health.AddConnection("controller", fixedConn(connectivity.TransientFailure))
	s := NewServer(health)

	if rec := get(t, s.Handler(), "/health/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestDetailedHealth(t *testing.T) {
	health := services.NewHealthService("test")
	health.AddConnection("controller", fixedConn(connectivity.Idle))
	health.AddPinger("broadcast", failingPinger{})
	s := NewServer(health)

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for a degraded report, got %d", rec.Code)
	}
	var report services.HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.Status != services.HealthStatusDegraded {
		t.Errorf("Expected degraded, got %s", report.Status)
	}
	if report.Components["broadcast"].Status != services.HealthStatusUnhealthy {
		t.Errorf("Expected broadcast component unhealthy, got %+v", report.Components["broadcast"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(services.NewHealthService("test"))
	get(t, s.Handler(), "/health/live")

	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "drunc_client_http_requests_total") {
		t.Error("Expected request counter in metrics output")
	}
}
