package observability

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus is ordered: a service reports the worst status of its parts.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusDown:
		return 2
	case HealthStatusDegraded:
		return 1
	}
	return 0
}

// Health is one component's result.
type Health struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
}

// ServiceHealth is the report served on /healthz.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Version    string       `json:"version,omitempty"`
	Status     HealthStatus `json:"status"`
	Components []Health     `json:"components,omitempty"`
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

type HealthCheckerFunc func(ctx context.Context) Health

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Version: version, Status: HealthStatusUp}
}

// AddComponent appends h and lowers the overall status if h is worse.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)
	if h.Status.severity() > sh.Status.severity() {
		sh.Status = h.Status
	}
}

// Check runs the checkers concurrently and reports them in the order given,
// so a slow provider probe does not hold up the database check.
func Check(ctx context.Context, service, version string, checkers ...HealthChecker) *ServiceHealth {
	results := make([]Health, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			start := time.Now()
			results[i] = c.CheckHealth(ctx)
			results[i].LatencyMs = time.Since(start).Milliseconds()
			return nil
		})
	}
	_ = g.Wait()

	sh := NewServiceHealth(service, version)
	for _, h := range results {
		sh.AddComponent(h)
	}
	return sh
}
