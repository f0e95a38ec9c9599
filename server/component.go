package server

import (
	"context"
	"fmt"

	"github.com/kbukum/meshkit/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps Server to implement component.Component.
type Component struct {
	server *Server
}

// NewComponent returns a component.Component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

func (c *Component) Name() string { return componentName }

func (c *Component) Start(ctx context.Context) error {
	return c.server.Start(ctx)
}

func (c *Component) Stop(ctx context.Context) error {
	if !c.server.Running() {
		return nil
	}
	return c.server.Stop(ctx)
}

// Health is unhealthy until the listener is bound.
func (c *Component) Health(_ context.Context) component.Health {
	if c.server.Running() {
		return component.Health{
			Name:    componentName,
			Status:  component.StatusHealthy,
			Details: map[string]any{"addr": c.server.Addr()},
		}
	}
	return component.Health{
		Name:    componentName,
		Status:  component.StatusUnhealthy,
		Message: "HTTP server not listening",
	}
}

// Describe returns the startup summary line.
func (c *Component) Describe() component.Description {
	cfg := c.server.config
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Port:    cfg.Port,
	}
}

// Server returns the wrapped server.
func (c *Component) Server() *Server {
	return c.server
}
