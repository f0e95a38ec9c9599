package httpclient

import (
	"time"

	"github.com/kbukum/meshkit/resilience"
	"github.com/kbukum/meshkit/validation"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultRetries         = 3
	defaultRetryDelay      = time.Second
	defaultMetricsCapacity = 10000
	defaultBulkConcurrency = 10
)

// Config configures the HTTP client.
type Config struct {
	// ServiceName identifies the caller in the X-Calling-Service header.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`

	// BaseURL is prepended to relative request paths of the plain Client.
	// The resilient client builds URLs from registry instances instead.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds each attempt. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Retries is the number of additional attempts after the first. Nil
	// means 3; use a pointer to zero to disable retrying.
	Retries *int `yaml:"retries" mapstructure:"retries"`

	// RetryDelay is the base of the exponential backoff between attempts.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`

	// MetricsCapacity bounds the ring buffer of recent request metrics.
	MetricsCapacity int `yaml:"metrics_capacity" mapstructure:"metrics_capacity"`

	// BulkConcurrency bounds how many requests of a bulk call run at once.
	BulkConcurrency int `yaml:"bulk_concurrency" mapstructure:"bulk_concurrency"`

	// RateLimiter throttles outbound requests. Nil disables it.
	RateLimiter *resilience.RateLimiterConfig `yaml:"rate_limiter" mapstructure:"rate_limiter"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Retries == nil {
		c.Retries = Ptr(defaultRetries)
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MetricsCapacity <= 0 {
		c.MetricsCapacity = defaultMetricsCapacity
	}
	if c.BulkConcurrency <= 0 {
		c.BulkConcurrency = defaultBulkConcurrency
	}
	if c.RateLimiter != nil {
		c.RateLimiter.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	v := validation.New().
		Positive("timeout", c.Timeout).
		NonNegative("retry_delay", c.RetryDelay).
		Min("metrics_capacity", c.MetricsCapacity, 1).
		Min("bulk_concurrency", c.BulkConcurrency, 1)
	if c.Retries != nil {
		v.Min("retries", *c.Retries, 0)
	}
	if c.RateLimiter != nil {
		v.Merge("rate_limiter", c.RateLimiter.Validate())
	}
	return v.Err()
}

// Ptr returns a pointer to v, for optional fields such as Retries.
func Ptr[T any](v T) *T {
	return &v
}
