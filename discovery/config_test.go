package discovery

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Services: []ServiceConfig{{
		Name:           "billing",
		HealthCheck:    &HealthCheckConfig{},
		CircuitBreaker: &BreakerPolicy{},
	}}}
	cfg.ApplyDefaults()

	if cfg.SweepInterval != 30*time.Second || cfg.StaleAfter != 60*time.Second || cfg.BreakerEvalInterval != 10*time.Second {
		t.Errorf("unexpected intervals %+v", cfg)
	}
	if cfg.DefaultStrategy != StrategyRoundRobin {
		t.Errorf("expected round robin, got %s", cfg.DefaultStrategy)
	}
	svc := cfg.Services[0]
	if svc.LoadBalancing != StrategyRoundRobin {
		t.Errorf("expected service strategy default, got %s", svc.LoadBalancing)
	}
	hc := svc.HealthCheck
	if hc.Endpoint != "/health" || hc.Interval != 30*time.Second || hc.Timeout != 5*time.Second || hc.ExpectedStatus != 200 {
		t.Errorf("unexpected health check defaults %+v", hc)
	}
	cb := svc.CircuitBreaker
	if cb.FailureThreshold != 5 || cb.RecoveryTimeout != time.Minute || cb.MonitoringPeriod != time.Minute {
		t.Errorf("unexpected breaker defaults %+v", cb)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	valid := func() ServiceConfig {
		return ServiceConfig{
			Name:      "billing",
			Instances: []ServiceInstance{{ID: "a", Host: "h", Port: 80}},
		}
	}
	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
		errMsg string
	}{
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "name: is required"},
		{"unknown strategy", func(c *ServiceConfig) { c.LoadBalancing = "random" }, "load_balancing: must be one of"},
		{"relative endpoint", func(c *ServiceConfig) { c.HealthCheck = &HealthCheckConfig{Endpoint: "health"} }, "health_check.endpoint"},
		{"bad status", func(c *ServiceConfig) { c.HealthCheck = &HealthCheckConfig{ExpectedStatus: 42} }, "health_check.expected_status"},
		{"negative threshold", func(c *ServiceConfig) { c.CircuitBreaker = &BreakerPolicy{FailureThreshold: -1} }, "circuit_breaker.failure_threshold"},
		{"foreign instance", func(c *ServiceConfig) { c.Instances[0].Name = "other" }, "instances[0].name: must match"},
		{"duplicate id", func(c *ServiceConfig) { c.Instances = append(c.Instances, c.Instances[0]) }, "instances[1].id: is duplicated"},
		{"bad port", func(c *ServiceConfig) { c.Instances[0].Port = 0 }, "instances[0].port"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
			}
		})
	}

	cfg := valid()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}
