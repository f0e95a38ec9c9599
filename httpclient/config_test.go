package httpclient

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/meshkit/resilience"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.Retries == nil || *cfg.Retries != 3 {
		t.Errorf("expected 3 retries, got %v", cfg.Retries)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("expected 1s retry delay, got %v", cfg.RetryDelay)
	}
	if cfg.MetricsCapacity != 10000 || cfg.BulkConcurrency != 10 {
		t.Errorf("unexpected capacity defaults %d/%d", cfg.MetricsCapacity, cfg.BulkConcurrency)
	}
}

func TestConfig_ApplyDefaults_PreservesExisting(t *testing.T) {
	cfg := Config{Timeout: 10 * time.Second, Retries: Ptr(0)}
	cfg.ApplyDefaults()
	if cfg.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", cfg.Timeout)
	}
	if *cfg.Retries != 0 {
		t.Errorf("explicit zero retries must be kept, got %d", *cfg.Retries)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"valid", Config{Timeout: time.Second, MetricsCapacity: 1, BulkConcurrency: 1}, ""},
		{"negative timeout", Config{Timeout: -1, MetricsCapacity: 1, BulkConcurrency: 1}, "timeout"},
		{"negative retries", Config{Timeout: time.Second, Retries: Ptr(-1), MetricsCapacity: 1, BulkConcurrency: 1}, "retries"},
		{"bad rate limiter", Config{
			Timeout: time.Second, MetricsCapacity: 1, BulkConcurrency: 1,
			RateLimiter: &resilience.RateLimiterConfig{Rate: -1, Burst: 1},
		}, "rate_limiter.rate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}
