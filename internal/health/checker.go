package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Breaker is an upstream guarded by a circuit breaker.
type Breaker interface {
	Name() string
	State() gobreaker.State
}

// Checker provides Kubernetes-ready health checks
type Checker struct {
	Sessions    Pinger
	Backend     string
	Breakers    []Breaker
	Environment string
	Logger      *slog.Logger

	started time.Time
}

func NewChecker(sessions Pinger, backend string, breakers []Breaker, environment string, logger *slog.Logger) Checker {
	return Checker{
		Sessions:    sessions,
		Backend:     backend,
		Breakers:    breakers,
		Environment: environment,
		Logger:      logger,
		started:     time.Now(),
	}
}

// HealthStatus represents comprehensive health information for Kubernetes
type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Details    *HealthDetails             `json:"details,omitempty"`
}

// ComponentHealth represents individual component health
type ComponentHealth struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	LatencyMS   float64 `json:"latency_ms"`
	LastChecked string  `json:"last_checked"`
	Critical    bool    `json:"critical"`
}

type HealthDetails struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Environment   string  `json:"environment,omitempty"`
	SessionStore  string  `json:"session_store"`
}

// CheckHealth checks every dependency. Open breakers degrade the service; an
// unreachable session store makes it unhealthy.
func (h *Checker) CheckHealth(ctx context.Context) HealthStatus {
	components := map[string]ComponentHealth{
		"session_store": h.checkSessionStore(ctx),
	}
	for _, b := range h.Breakers {
		components["upstream_"+b.Name()] = checkBreaker(b)
	}

	status := h.newStatus(components)
	status.Details = &HealthDetails{
		UptimeSeconds: time.Since(h.started).Seconds(),
		Environment:   h.Environment,
		SessionStore:  h.Backend,
	}
	return status
}

// CheckLiveness provides a lightweight check for Kubernetes liveness probe
func (h *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return h.newStatus(map[string]ComponentHealth{
		"process": {
			Status:      StatusHealthy,
			Message:     "service is responsive",
			LastChecked: now(),
			Critical:    true,
		},
	})
}

// CheckReadiness only checks what a request cannot be served without.
func (h *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	return h.newStatus(map[string]ComponentHealth{
		"session_store": h.checkSessionStore(ctx),
	})
}

func (h *Checker) checkSessionStore(ctx context.Context) ComponentHealth {
	start := time.Now()

	if h.Sessions == nil {
		return ComponentHealth{
			Status:      StatusUnhealthy,
			Message:     "session store not configured",
			LastChecked: now(),
			Critical:    true,
		}
	}

	err := h.Sessions.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		h.Logger.ErrorContext(ctx, "Session store health check failed", "error", err, "latency", latency)
		return ComponentHealth{
			Status:      StatusUnhealthy,
			Message:     "session store unreachable: " + err.Error(),
			LatencyMS:   milliseconds(latency),
			LastChecked: now(),
			Critical:    true,
		}
	}

	status, message := StatusHealthy, "session store reachable"
	if latency > 100*time.Millisecond {
		status, message = StatusDegraded, "session store response time elevated"
	}
	return ComponentHealth{
		Status:      status,
		Message:     message,
		LatencyMS:   milliseconds(latency),
		LastChecked: now(),
		Critical:    true,
	}
}

func checkBreaker(b Breaker) ComponentHealth {
	status := StatusHealthy
	if b.State() != gobreaker.StateClosed {
		status = StatusDegraded
	}
	return ComponentHealth{
		Status:      status,
		Message:     "circuit " + b.State().String(),
		LastChecked: now(),
		Critical:    false,
	}
}

func (h *Checker) newStatus(components map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:     determineOverallStatus(components),
		Timestamp:  now(),
		Components: components,
	}
}

func determineOverallStatus(components map[string]ComponentHealth) string {
	hasDegraded := false
	for _, component := range components {
		if component.Critical && component.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if component.Status != StatusHealthy {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
