package httpclient

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/testutil"
)

func TestComponent_Lifecycle(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	comp := NewComponent(c)
	testutil.T(t).Setup(comp)

	if comp.Name() != "httpclient" {
		t.Errorf("unexpected name %q", comp.Name())
	}
	if comp.Client() != c {
		t.Error("Client should return the wrapped client")
	}
	h := comp.Health(context.Background())
	if h.Status != component.StatusHealthy {
		t.Errorf("idle client should be healthy, got %s", h.Status)
	}
}

func TestComponent_HealthDegradesOnErrors(t *testing.T) {
	c, reg := newTestClient(t, Config{})
	srv := testutil.NewInstanceServer(t)
	srv.Respond(http.StatusInternalServerError, nil)
	register(t, reg, "billing", "b1", srv)

	comp := NewComponent(c)
	for range minRequestsForHealth {
		_, _ = c.Get(context.Background(), "billing", "/x", RequestOptions{Retries: Ptr(0)})
	}
	h := comp.Health(context.Background())
	if h.Status != component.StatusDegraded {
		t.Fatalf("expected degraded, got %s", h.Status)
	}
	if !strings.Contains(h.Message, "100%") {
		t.Errorf("unexpected message %q", h.Message)
	}
	if h.Details["errors"] != minRequestsForHealth {
		t.Errorf("unexpected details %v", h.Details)
	}
}

func TestComponent_Describe(t *testing.T) {
	c, _ := newTestClient(t, Config{Retries: Ptr(2)})
	d := NewComponent(c).Describe()
	if d.Type != "resilient-client" {
		t.Errorf("unexpected type %q", d.Type)
	}
	if !strings.Contains(d.Details, "retries=2") {
		t.Errorf("unexpected details %q", d.Details)
	}
}
