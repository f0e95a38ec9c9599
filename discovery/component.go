package discovery

import (
	"context"
	"fmt"

	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/logger"
)

// Component runs a Registry under the component lifecycle.
type Component struct {
	registry *Registry
	cfg      Config
	log      *logger.Logger
}

var _ component.Component = (*Component)(nil)

// NewComponent builds the Registry. The services listed in cfg are
// registered on Start.
func NewComponent(cfg Config, log *logger.Logger, opts ...Option) (*Component, error) {
	reg, err := NewRegistry(cfg, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("discovery config: %w", err)
	}
	return &Component{
		registry: reg,
		cfg:      reg.cfg,
		log:      reg.log,
	}, nil
}

func (c *Component) Name() string { return "discovery" }

func (c *Component) Registry() *Registry { return c.registry }

// Start registers the configured services and starts the background loops.
func (c *Component) Start(ctx context.Context) error {
	for _, svc := range c.cfg.Services {
		if err := c.registry.ConfigureService(svc); err != nil {
			return fmt.Errorf("discovery: configure %s: %w", svc.Name, err)
		}
	}
	return c.registry.Start(ctx)
}

func (c *Component) Stop(ctx context.Context) error {
	c.registry.Stop()
	return nil
}

// Health is degraded while any service has no healthy instance.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.registry.Running() {
		h.Status = component.StatusUnhealthy
		h.Message = "registry not running"
		return h
	}

	services := c.registry.Services()
	var unavailable []string
	for _, name := range services {
		if len(c.registry.DiscoverService(name, DiscoverOptions{OnlyHealthy: true})) == 0 {
			unavailable = append(unavailable, name)
		}
	}
	h.Details = map[string]any{"services": len(services)}
	if len(unavailable) > 0 {
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d service(s) without a healthy instance", len(unavailable))
		h.Details["unavailable"] = unavailable
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Discovery",
		Type:    "registry",
		Details: fmt.Sprintf("services=%d sweep=%s stale_after=%s", len(c.cfg.Services), c.cfg.SweepInterval, c.cfg.StaleAfter),
	}
}
