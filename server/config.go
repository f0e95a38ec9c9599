package server

import (
	"time"

	"github.com/kbukum/meshkit/resilience"
	"github.com/kbukum/meshkit/validation"
)

// Config holds HTTP server configuration.
type Config struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// RateLimit enables inbound token-bucket limiting when set.
	RateLimit *resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.RateLimit != nil {
		c.RateLimit.ApplyDefaults()
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	v := validation.New().
		Range("port", c.Port, 0, 65535).
		NonNegative("read_timeout", c.ReadTimeout).
		NonNegative("write_timeout", c.WriteTimeout).
		NonNegative("idle_timeout", c.IdleTimeout).
		Positive("shutdown_timeout", c.ShutdownTimeout)
	if c.RateLimit != nil {
		v.Merge("rate_limit", c.RateLimit.Validate())
	}
	return v.Err()
}
