package httpclient

import (
	"context"
	"fmt"

	"github.com/kbukum/meshkit/component"
)

const (
	// degradedErrorRate marks the client degraded once this share of the
	// buffered requests failed.
	degradedErrorRate = 0.5
	// minRequestsForHealth avoids judging on a handful of requests.
	minRequestsForHealth = 10
)

// Component exposes a Resilient client to the component registry.
type Component struct {
	client *Resilient
}

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

func NewComponent(client *Resilient) *Component {
	return &Component{client: client}
}

func (c *Component) Name() string {
	return "httpclient"
}

// Start is a no-op; the client is usable once constructed.
func (c *Component) Start(_ context.Context) error {
	return nil
}

// Stop drops pooled connections.
func (c *Component) Stop(_ context.Context) error {
	c.client.Client().CloseIdleConnections()
	return nil
}

// Health reports degraded when at least half of the recently buffered
// requests failed.
func (c *Component) Health(_ context.Context) component.Health {
	report := c.client.PerformanceReport()
	var errs int
	for _, m := range c.client.RecentMetrics(0) {
		if !m.Success {
			errs++
		}
	}

	h := component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
		Details: map[string]any{
			"requests": report.TotalRequests,
			"errors":   errs,
			"services": report.Services,
		},
	}
	if report.TotalRequests >= minRequestsForHealth {
		rate := float64(errs) / float64(report.TotalRequests)
		if rate >= degradedErrorRate {
			h.Status = component.StatusDegraded
			h.Message = fmt.Sprintf("%.0f%% of recent requests failed", rate*100)
		}
	}
	return h
}

func (c *Component) Describe() component.Description {
	cfg := c.client.Config()
	return component.Description{
		Name:    "HTTP Client",
		Type:    "resilient-client",
		Details: fmt.Sprintf("timeout=%s retries=%d retry_delay=%s", cfg.Timeout, *cfg.Retries, cfg.RetryDelay),
	}
}

// Client returns the wrapped client.
func (c *Component) Client() *Resilient {
	return c.client
}
