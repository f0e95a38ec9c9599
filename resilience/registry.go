package resilience

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kbukum/meshkit/logger"
)

// Registry is a keyed set of breakers sharing default settings.
type Registry struct {
	defaults Config
	opts     []BreakerOption
	log      *logger.Logger

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry. opts are applied to every breaker
// it creates, after its logger. Invalid defaults are rejected here so that
// GetOrCreate cannot fail.
func NewRegistry(defaults Config, log *logger.Logger, opts ...BreakerOption) (*Registry, error) {
	defaults.ApplyDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker defaults: %w", err)
	}
	return &Registry{
		defaults: defaults,
		opts:     opts,
		log:      logger.OrNop(log),
		breakers: make(map[string]*CircuitBreaker),
	}, nil
}

// GetOrCreate returns the breaker called name, creating it from the registry
// defaults.
func (r *Registry) GetOrCreate(name string) *CircuitBreaker {
	cb, _ := r.getOrCreate(name, r.defaults)
	return cb
}

// GetOrCreateWith is GetOrCreate with the non-zero fields of override laid
// over the defaults. override is ignored when the breaker already exists;
// an invalid merged config is returned as an error and nothing is created.
func (r *Registry) GetOrCreateWith(name string, override Config) (*CircuitBreaker, error) {
	return r.getOrCreate(name, r.defaults.merge(override))
}

func (r *Registry) getOrCreate(name string, cfg Config) (*CircuitBreaker, error) {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb, nil
	}

	cfg.Name = name
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker %q: %w", name, err)
	}

	opts := append([]BreakerOption{WithLogger(r.log)}, r.opts...)
	cb = NewCircuitBreaker(cfg, opts...)
	r.breakers[name] = cb
	r.log.Debug("circuit breaker created", logger.Fields(logger.FieldBreaker, name))
	return cb, nil
}

func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// Remove drops the breaker called name. Holders of the pointer keep a
// working but unregistered breaker.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	delete(r.breakers, name)
	r.mu.Unlock()
	if ok {
		cb.stop()
	}
	return ok
}

// Names returns the breaker names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.breakers))
}

// Execute runs op through the breaker called name, creating it if needed.
func (r *Registry) Execute(ctx context.Context, name string, op func(ctx context.Context) (any, error)) (any, error) {
	return r.GetOrCreate(name).Execute(ctx, op)
}

func (r *Registry) ResetAll() {
	for _, cb := range r.snapshot() {
		cb.Reset()
	}
}

func (r *Registry) snapshot() []*CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, name := range slices.Sorted(maps.Keys(r.breakers)) {
		out = append(out, r.breakers[name])
	}
	return out
}

// BreakerReport is one entry of a HealthReport. Durations are milliseconds.
type BreakerReport struct {
	Name          string  `json:"name"`
	State         State   `json:"state"`
	Healthy       bool    `json:"healthy"`
	ErrorRate     float64 `json:"errorRate"`
	TotalRequests int64   `json:"totalRequests"`
	Failures      int64   `json:"failures"`
	Successes     int64   `json:"successes"`
	Uptime        int64   `json:"uptime"`
	Downtime      int64   `json:"downtime"`
}

// ReportSummary counts breakers by health: degraded is HALF_OPEN and
// unhealthy is OPEN.
type ReportSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
}

type HealthReport struct {
	Breakers []BreakerReport `json:"breakers"`
	Summary  ReportSummary   `json:"summary"`
}

func (r *Registry) HealthReport() HealthReport {
	breakers := r.snapshot()
	report := HealthReport{Breakers: make([]BreakerReport, 0, len(breakers))}
	for _, cb := range breakers {
		m := cb.Metrics()
		report.Breakers = append(report.Breakers, BreakerReport{
			Name:          m.Name,
			State:         m.State,
			Healthy:       m.State == StateClosed,
			ErrorRate:     m.ErrorRate,
			TotalRequests: m.TotalRequests,
			Failures:      m.Failures,
			Successes:     m.Successes,
			Uptime:        m.Uptime.Milliseconds(),
			Downtime:      m.Downtime.Milliseconds(),
		})
		report.Summary.Total++
		switch m.State {
		case StateClosed:
			report.Summary.Healthy++
		case StateHalfOpen:
			report.Summary.Degraded++
		case StateOpen:
			report.Summary.Unhealthy++
		}
	}
	return report
}
