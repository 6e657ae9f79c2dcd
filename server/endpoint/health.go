package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/observability"
)

// Checkers adapts every component of r to an observability.HealthChecker.
func Checkers(r *component.Registry) []observability.HealthChecker {
	comps := r.All()
	out := make([]observability.HealthChecker, 0, len(comps))
	for _, c := range comps {
		c := c
		out = append(out, observability.HealthCheckerFunc(func(ctx context.Context) observability.Health {
			return fromComponent(c.Health(ctx))
		}))
	}
	return out
}

func fromComponent(h component.Health) observability.Health {
	status := observability.HealthStatusUp
	switch h.Status {
	case component.StatusUnhealthy:
		status = observability.HealthStatusDown
	case component.StatusDegraded:
		status = observability.HealthStatusDegraded
	}
	return observability.Health{Name: h.Name, Status: status, Message: h.Message}
}

// Health returns a handler that reports service health. It answers 503
// when any checker is down.
func Health(serviceName, version string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.Check(c.Request.Context(), serviceName, version, checkers...)

		httpStatus := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":     sh.Status,
			"service":    sh.Service,
			"version":    sh.Version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": sh.Components,
		})
	}
}
