package resilience

import (
	"context"
	"fmt"

	"github.com/kbukum/meshkit/component"
)

// RegistryComponent exposes a breaker Registry to the component lifecycle.
type RegistryComponent struct {
	registry *Registry
}

var _ component.Component = (*RegistryComponent)(nil)

func NewRegistryComponent(r *Registry) *RegistryComponent {
	return &RegistryComponent{registry: r}
}

func (c *RegistryComponent) Name() string { return "circuit-breakers" }

func (c *RegistryComponent) Registry() *Registry { return c.registry }

func (c *RegistryComponent) Start(ctx context.Context) error { return nil }

// Stop cancels the reset timers of every breaker.
func (c *RegistryComponent) Stop(ctx context.Context) error {
	for _, cb := range c.registry.snapshot() {
		cb.stop()
	}
	return nil
}

// Health is unhealthy when every breaker is OPEN and degraded when any is
// OPEN or HALF_OPEN.
func (c *RegistryComponent) Health(ctx context.Context) component.Health {
	s := c.registry.HealthReport().Summary
	h := component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
		Details: map[string]any{
			"total": s.Total, "healthy": s.Healthy, "degraded": s.Degraded, "unhealthy": s.Unhealthy,
		},
	}
	switch {
	case s.Total > 0 && s.Unhealthy == s.Total:
		h.Status = component.StatusUnhealthy
		h.Message = "all circuit breakers are open"
	case s.Unhealthy > 0 || s.Degraded > 0:
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d open, %d half-open", s.Unhealthy, s.Degraded)
	}
	return h
}

func (c *RegistryComponent) Describe() component.Description {
	return component.Description{
		Type:    "circuit-breakers",
		Details: fmt.Sprintf("threshold=%d recovery=%s", c.registry.defaults.FailureThreshold, c.registry.defaults.RecoveryTimeout),
	}
}
