package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/config"
	"github.com/kbukum/meshkit/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	m.stopped = true
	return m.stopErr
}

func (m *mockComponent) Health(context.Context) component.Health {
	return m.health
}

func healthy(name string) *mockComponent {
	return &mockComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{
		Name:        "meshd",
		Version:     "1.0.0",
		Environment: "development",
	}}
	app, err := NewApp(cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "meshd" || app.Version != "1.0.0" {
		t.Fatalf("name %q version %q", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil {
		t.Fatal("components and logger must be set")
	}
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Fatalf("graceful timeout = %v", app.gracefulTimeout)
	}
	if !app.Cfg.Debug {
		t.Error("development environment should enable debug")
	}
}

func TestNewAppValidation(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Fatal("expected an error for a config without a name")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(3*time.Second))
	if app.gracefulTimeout != 3*time.Second {
		t.Fatalf("graceful timeout = %v", app.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app := newTestApp(t)
	if err := app.RegisterComponent(healthy("a")); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(healthy("a")); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  component.HealthStatus
		wantErr bool
	}{
		{"healthy", component.StatusHealthy, false},
		{"degraded", component.StatusDegraded, true},
		{"unhealthy", component.StatusUnhealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			_ = app.RegisterComponent(&mockComponent{name: "c", health: component.Health{Name: "c", Status: tt.status}})
			if err := app.ReadyCheck(context.Background()); (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunTaskLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := healthy("discovery")
	_ = app.RegisterComponent(c)

	var order []string
	record := func(step string) Hook {
		return func(context.Context) error {
			order = append(order, step)
			return nil
		}
	}
	app.OnStart(record("start"))
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		if a != app {
			t.Error("configure received another app")
		}
		order = append(order, "configure")
		return nil
	})
	app.OnReady(record("ready"))
	app.OnStop(record("stop"))

	err := app.RunTask(context.Background(), record("task"))
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if !c.started || !c.stopped {
		t.Fatalf("component started %v stopped %v", c.started, c.stopped)
	}

	want := []string{"start", "configure", "ready", "task", "stop"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunTaskErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("task error wins over stop error", func(t *testing.T) {
		app := newTestApp(t)
		_ = app.RegisterComponent(&mockComponent{name: "c", stopErr: errors.New("stop")})
		if err := app.RunTask(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("component start error", func(t *testing.T) {
		app := newTestApp(t)
		_ = app.RegisterComponent(&mockComponent{name: "c", startErr: boom})
		ran := false
		err := app.RunTask(context.Background(), func(context.Context) error {
			ran = true
			return nil
		})
		if !errors.Is(err, boom) || ran {
			t.Fatalf("err = %v, task ran %v", err, ran)
		}
	})

	t.Run("start hook error stops components", func(t *testing.T) {
		app := newTestApp(t)
		c := healthy("c")
		_ = app.RegisterComponent(c)
		app.OnStart(func(context.Context) error { return boom })
		if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if !c.stopped {
			t.Fatal("component should be stopped after a failed start hook")
		}
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	c := healthy("c")
	_ = app.RegisterComponent(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !c.stopped {
		t.Fatal("component not stopped")
	}
}
