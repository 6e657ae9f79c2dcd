package component

import "context"

// HealthStatus is the state a component reports to /healthz.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's entry in the health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is started once before the pipeline accepts work and stopped
// once after it has drained. Name must be unique within a Registry.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is the line a component contributes to the startup summary,
// e.g. {Name: "SQLite", Type: "database", Details: "./data/voicememo.db"}.
// An empty Name falls back to Component.Name.
type Description struct {
	Name    string
	Type    string
	Details string
	Port    int
}

// Describable components show up in the startup summary.
type Describable interface {
	Describe() Description
}
