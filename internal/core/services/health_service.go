package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc/connectivity"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Latency   string       `json:"latency,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentHealth `json:"components"`
}

// ConnState is satisfied by *grpc.ClientConn.
type ConnState interface {
	GetState() connectivity.State
}

// Pinger is an optional backend, such as the segment database or a broadcast broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	mu      sync.RWMutex
	conns   map[string]ConnState
	pingers map[string]Pinger
	version string
}

func NewHealthService(version string) *HealthService {
	if version == "" {
		version = "0.0.1"
	}
	return &HealthService{
		conns:   make(map[string]ConnState),
		pingers: make(map[string]Pinger),
		version: version,
	}
}

// AddConnection registers a remote endpoint the client depends on.
func (s *HealthService) AddConnection(name string, c ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[name] = c
}

// AddPinger registers an optional backend. Its failure only degrades the report.
func (s *HealthService) AddPinger(name string, p Pinger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingers[name] = p
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:     HealthStatusHealthy,
		Version:    s.version,
		CheckedAt:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, c := range s.conns {
		h := checkConnection(c)
		report.Components[name] = h
		if h.Status != HealthStatusHealthy {
			report.Status = HealthStatusUnhealthy
		}
	}

	for name, p := range s.pingers {
		h := checkPinger(ctx, p)
		report.Components[name] = h
		if h.Status != HealthStatusHealthy && report.Status == HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
	}

	return report
}

func checkConnection(c ConnState) ComponentHealth {
	state := c.GetState()
	h := ComponentHealth{
		Message:   state.String(),
		CheckedAt: time.Now(),
	}
	switch state {
	case connectivity.Ready, connectivity.Idle:
		h.Status = HealthStatusHealthy
	case connectivity.Connecting:
		h.Status = HealthStatusDegraded
	default:
		h.Status = HealthStatusUnhealthy
	}
	return h
}

func checkPinger(ctx context.Context, p Pinger) ComponentHealth {
	start := time.Now()

	// Check connection with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:    HealthStatusUnhealthy,
			Message:   fmt.Sprintf("Ping failed: %v", err),
			Latency:   time.Since(start).String(),
			CheckedAt: time.Now(),
		}
	}

	return ComponentHealth{
		Status:    HealthStatusHealthy,
		Latency:   time.Since(start).String(),
		CheckedAt: time.Now(),
	}
}

// SimpleHealthCheck returns a simple health status for load balancers
func (s *HealthService) SimpleHealthCheck(ctx context.Context) (string, int) {
	report := s.CheckHealth(ctx)

	switch report.Status {
	case HealthStatusHealthy:
		return "ok", http.StatusOK
	case HealthStatusDegraded:
		return "degraded", http.StatusOK // Still serving requests
	default:
		return "unhealthy", http.StatusServiceUnavailable
	}
}
