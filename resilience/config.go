package resilience

import (
	"time"

	"github.com/kbukum/meshkit/validation"
)

// TripMode selects the condition that opens a CLOSED breaker.
type TripMode string

const (
	// TripThreshold opens once failures+timeouts reach FailureThreshold.
	TripThreshold TripMode = "threshold"
	// TripSlidingWindow opens once the error ratio over MonitoringPeriod
	// reaches ExpectedErrorRate and at least FailureThreshold of those
	// outcomes failed.
	TripSlidingWindow TripMode = "sliding_window"
)

const (
	DefaultFailureThreshold  = 5
	DefaultSuccessThreshold  = 1
	DefaultRecoveryTimeout   = 60 * time.Second
	DefaultMonitoringPeriod  = 60 * time.Second
	DefaultExpectedErrorRate = 0.5
	DefaultWindowSize        = 1000
)

// Config configures a CircuitBreaker.
type Config struct {
	Name             string        `yaml:"name" mapstructure:"name"`
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold" mapstructure:"success_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" mapstructure:"recovery_timeout"`
	MonitoringPeriod time.Duration `yaml:"monitoring_period" mapstructure:"monitoring_period"`
	// Timeout bounds each operation; zero disables it.
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ExpectedErrorRate float64       `yaml:"expected_error_rate" mapstructure:"expected_error_rate"`
	TripMode          TripMode      `yaml:"trip_mode" mapstructure:"trip_mode"`
	// ResetTimeout, when set, forces OPEN -> HALF_OPEN after it elapses even
	// if no call arrives. Otherwise RecoveryTimeout is evaluated lazily.
	ResetTimeout time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
	WindowSize   int           `yaml:"window_size" mapstructure:"window_size"`
}

func DefaultConfig(name string) Config {
	cfg := Config{Name: name}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.RecoveryTimeout == 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.MonitoringPeriod == 0 {
		c.MonitoringPeriod = DefaultMonitoringPeriod
	}
	if c.ExpectedErrorRate == 0 {
		c.ExpectedErrorRate = DefaultExpectedErrorRate
	}
	if c.TripMode == "" {
		c.TripMode = TripThreshold
	}
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
}

func (c *Config) Validate() error {
	return validation.New().
		Min("failure_threshold", c.FailureThreshold, 1).
		Min("success_threshold", c.SuccessThreshold, 1).
		Positive("recovery_timeout", c.RecoveryTimeout).
		Positive("monitoring_period", c.MonitoringPeriod).
		NonNegative("timeout", c.Timeout).
		NonNegative("reset_timeout", c.ResetTimeout).
		Ratio("expected_error_rate", c.ExpectedErrorRate).
		OneOf("trip_mode", string(c.TripMode), []string{string(TripThreshold), string(TripSlidingWindow)}).
		Min("window_size", c.WindowSize, 1).
		Err()
}

// merge overlays the non-zero fields of o onto c.
func (c Config) merge(o Config) Config {
	if o.Name != "" {
		c.Name = o.Name
	}
	if o.FailureThreshold != 0 {
		c.FailureThreshold = o.FailureThreshold
	}
	if o.SuccessThreshold != 0 {
		c.SuccessThreshold = o.SuccessThreshold
	}
	if o.RecoveryTimeout != 0 {
		c.RecoveryTimeout = o.RecoveryTimeout
	}
	if o.MonitoringPeriod != 0 {
		c.MonitoringPeriod = o.MonitoringPeriod
	}
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
	if o.ExpectedErrorRate != 0 {
		c.ExpectedErrorRate = o.ExpectedErrorRate
	}
	if o.TripMode != "" {
		c.TripMode = o.TripMode
	}
	if o.ResetTimeout != 0 {
		c.ResetTimeout = o.ResetTimeout
	}
	if o.WindowSize != 0 {
		c.WindowSize = o.WindowSize
	}
	return c
}
