package discovery

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/testutil"
)

func TestComponent_Lifecycle(t *testing.T) {
	cfg := Config{Services: []ServiceConfig{{
		Name: "billing",
		Instances: []ServiceInstance{
			{ID: "A", Host: "10.0.0.1", Port: 8080},
			{ID: "B", Host: "10.0.0.2", Port: 8080, Health: HealthUnhealthy},
		},
	}}}
	comp, err := NewComponent(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewComponent failed: %v", err)
	}

	ctx := context.Background()
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before Start, got %s", h.Status)
	}

	testutil.T(t).Setup(comp)

	if got := comp.Registry().DiscoverService("billing", DiscoverOptions{}); len(got) != 2 {
		t.Fatalf("expected configured instances to be registered, got %d", len(got))
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s: %s", h.Status, h.Message)
	}

	comp.Registry().DeregisterService("billing", "A")
	h := comp.Health(ctx)
	if h.Status != component.StatusDegraded {
		t.Errorf("expected degraded without a healthy instance, got %s", h.Status)
	}
	if !strings.Contains(h.Message, "1 service") {
		t.Errorf("unexpected message %q", h.Message)
	}
	if d := comp.Describe(); d.Name != "Discovery" || !strings.Contains(d.Details, "services=1") {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestNewComponent_RejectsInvalidConfig(t *testing.T) {
	cfg := Config{Services: []ServiceConfig{{Name: "billing", LoadBalancing: "random"}}}
	_, err := NewComponent(cfg, logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "services[0].load_balancing") {
		t.Fatalf("expected load_balancing validation error, got %v", err)
	}
}
