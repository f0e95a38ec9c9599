package observability

import (
	"context"

	"github.com/kbukum/meshkit/component"
)

// ServiceHealth is the process-wide health document served on /health.
type ServiceHealth struct {
	Service    string                 `json:"service"`
	Status     component.HealthStatus `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Components []component.Health     `json:"components,omitempty"`
}

// HealthChecker is anything that reports component health.
type HealthChecker interface {
	Health(ctx context.Context) component.Health
}

func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  component.StatusHealthy,
		Version: version,
	}
}

// AddComponent appends h and folds it into the overall status.
func (sh *ServiceHealth) AddComponent(h component.Health) {
	sh.Components = append(sh.Components, h)
	sh.Status = component.Overall(sh.Components)
}

// Check collects the health of every checker.
func (sh *ServiceHealth) Check(ctx context.Context, checkers ...HealthChecker) *ServiceHealth {
	for _, c := range checkers {
		sh.AddComponent(c.Health(ctx))
	}
	return sh
}

// Healthy reports whether nothing is unhealthy. Degraded still serves.
func (sh *ServiceHealth) Healthy() bool {
	return sh.Status != component.StatusUnhealthy
}
