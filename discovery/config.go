package discovery

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/meshkit/validation"
)

const (
	DefaultSweepInterval       = 30 * time.Second
	DefaultStaleAfter          = 60 * time.Second
	DefaultBreakerEvalInterval = 10 * time.Second

	DefaultHealthEndpoint = "/health"
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second

	DefaultBreakerFailureThreshold = 5
	DefaultBreakerRecoveryTimeout  = 60 * time.Second
	DefaultBreakerMonitoringPeriod = 60 * time.Second
)

// Config configures a Registry and its background tasks.
type Config struct {
	// SweepInterval is how often stale instances are dropped.
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	// StaleAfter is the heartbeat age past which an instance is dropped.
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
	// BreakerEvalInterval is how often per-instance breakers are evaluated.
	BreakerEvalInterval time.Duration `yaml:"breaker_eval_interval" mapstructure:"breaker_eval_interval"`
	// DefaultStrategy applies to services registered without a config.
	DefaultStrategy Strategy `yaml:"default_strategy" mapstructure:"default_strategy"`
	// Services are registered when the discovery Component starts.
	Services []ServiceConfig `yaml:"services" mapstructure:"services"`
}

func (c *Config) ApplyDefaults() {
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.BreakerEvalInterval == 0 {
		c.BreakerEvalInterval = DefaultBreakerEvalInterval
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = StrategyRoundRobin
	}
	for i := range c.Services {
		c.Services[i].ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	v := validation.New().
		Positive("sweep_interval", c.SweepInterval).
		Positive("stale_after", c.StaleAfter).
		Positive("breaker_eval_interval", c.BreakerEvalInterval).
		OneOf("default_strategy", string(c.DefaultStrategy), strategyNames)
	for i := range c.Services {
		v.Merge(fmt.Sprintf("services[%d]", i), c.Services[i].Validate())
	}
	return v.Err()
}

// ServiceConfig holds the policies of one named service.
type ServiceConfig struct {
	Name          string             `json:"name" yaml:"name" mapstructure:"name"`
	Instances     []ServiceInstance  `json:"instances,omitempty" yaml:"instances" mapstructure:"instances"`
	HealthCheck   *HealthCheckConfig `json:"healthCheck,omitempty" yaml:"health_check" mapstructure:"health_check"`
	LoadBalancing Strategy           `json:"loadBalancing" yaml:"load_balancing" mapstructure:"load_balancing"`
	// CircuitBreaker enables the per-instance breakers consulted by
	// SelectInstance.
	CircuitBreaker *BreakerPolicy `json:"circuitBreaker,omitempty" yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

func (c *ServiceConfig) ApplyDefaults() {
	if c.LoadBalancing == "" {
		c.LoadBalancing = StrategyRoundRobin
	}
	if c.HealthCheck != nil {
		c.HealthCheck.ApplyDefaults()
	}
	if c.CircuitBreaker != nil {
		c.CircuitBreaker.ApplyDefaults()
	}
	for i := range c.Instances {
		if c.Instances[i].Name == "" {
			c.Instances[i].Name = c.Name
		}
		c.Instances[i].applyDefaults()
	}
}

func (c *ServiceConfig) Validate() error {
	v := validation.New().
		Required("name", c.Name).
		OneOf("load_balancing", string(c.LoadBalancing), strategyNames)
	if c.HealthCheck != nil {
		v.Merge("health_check", c.HealthCheck.Validate())
	}
	if c.CircuitBreaker != nil {
		v.Merge("circuit_breaker", c.CircuitBreaker.Validate())
	}
	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		field := fmt.Sprintf("instances[%d]", i)
		v.Merge(field, validation.Validate(inst))
		v.Custom(inst.Name == "" || inst.Name == c.Name, field+".name", "must match the service name")
		v.Custom(!seen[inst.ID], field+".id", "is duplicated")
		seen[inst.ID] = true
	}
	return v.Err()
}

// HealthCheckConfig is the active probe policy of a service.
type HealthCheckConfig struct {
	Endpoint string        `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// Retries is accepted for compatibility; each round issues one probe
	// per instance.
	Retries        int `json:"retries" yaml:"retries" mapstructure:"retries"`
	ExpectedStatus int `json:"expectedStatus" yaml:"expected_status" mapstructure:"expected_status"`
}

func (c *HealthCheckConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultHealthEndpoint
	}
	if c.Interval == 0 {
		c.Interval = DefaultHealthInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultHealthTimeout
	}
	if c.ExpectedStatus == 0 {
		c.ExpectedStatus = http.StatusOK
	}
}

func (c *HealthCheckConfig) Validate() error {
	return validation.New().
		Pattern("endpoint", c.Endpoint, `^/`).
		Positive("interval", c.Interval).
		Positive("timeout", c.Timeout).
		Min("retries", c.Retries, 0).
		Range("expected_status", c.ExpectedStatus, 100, 599).
		Err()
}

// BreakerPolicy configures the breakers guarding each instance.
type BreakerPolicy struct {
	FailureThreshold int           `json:"failureThreshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recoveryTimeout" yaml:"recovery_timeout" mapstructure:"recovery_timeout"`
	MonitoringPeriod time.Duration `json:"monitoringPeriod" yaml:"monitoring_period" mapstructure:"monitoring_period"`
}

func (c *BreakerPolicy) ApplyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if c.RecoveryTimeout == 0 {
		c.RecoveryTimeout = DefaultBreakerRecoveryTimeout
	}
	if c.MonitoringPeriod == 0 {
		c.MonitoringPeriod = DefaultBreakerMonitoringPeriod
	}
}

func (c *BreakerPolicy) Validate() error {
	return validation.New().
		Min("failure_threshold", c.FailureThreshold, 1).
		Positive("recovery_timeout", c.RecoveryTimeout).
		Positive("monitoring_period", c.MonitoringPeriod).
		Err()
}

func (c ServiceConfig) clone() ServiceConfig {
	out := c
	out.Instances = nil
	if c.HealthCheck != nil {
		hc := *c.HealthCheck
		out.HealthCheck = &hc
	}
	if c.CircuitBreaker != nil {
		cb := *c.CircuitBreaker
		out.CircuitBreaker = &cb
	}
	return out
}
