package discovery

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/resilience"
	"github.com/kbukum/meshkit/validation"
)

var ErrServiceNotFound = errors.New("service not found")

// Registry is an in-process service registry. It owns every instance and
// its metrics; nothing is shared across processes.
type Registry struct {
	cfg        Config
	log        *logger.Logger
	now        func() time.Time
	rng        *rand.Rand
	httpClient *http.Client

	mu       sync.RWMutex
	services map[string]*service
	running  bool
	bgCtx    context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSubID   int
}

// service is the registry entry of one name. Instances keep registration
// order so selection ties are deterministic.
type service struct {
	config    ServiceConfig
	instances []*ServiceInstance
	metrics   map[string]*ServiceMetrics
	breakers  map[string]*instanceBreaker
	// stopHealth is set while a health loop runs.
	stopHealth context.CancelFunc
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRand sets the source used by weighted selection.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// WithHTTPClient sets the client used for health probes.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) { r.httpClient = c }
}

// NewRegistry creates an empty registry. Background tasks run only between
// Start and Stop. Config.Services is not registered here; see Component.
func NewRegistry(cfg Config, log *logger.Logger, opts ...Option) (*Registry, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		cfg:         cfg,
		log:         logger.OrNop(log).WithComponent("discovery"),
		now:         time.Now,
		httpClient:  &http.Client{},
		services:    make(map[string]*service),
		subscribers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return r, nil
}

// RegisterService upserts inst by (name, id). Re-registering keeps the
// original RegisteredAt and refreshes LastHeartbeat.
func (r *Registry) RegisterService(inst ServiceInstance) error {
	inst.applyDefaults()
	if err := validation.Validate(inst); err != nil {
		return &ValidationError{Service: inst.Name, Err: err}
	}

	now := r.now()
	r.mu.Lock()
	svc, ok := r.services[inst.Name]
	if !ok {
		svc = r.addService(ServiceConfig{Name: inst.Name, LoadBalancing: r.cfg.DefaultStrategy})
	}
	stored := svc.upsert(inst, now)
	r.ensureHealthLoop(svc)
	ev := instanceEvent(EventRegistered, stored, now)
	r.mu.Unlock()

	r.log.Info("service instance registered", logger.Fields(
		logger.FieldService, inst.Name, logger.FieldInstanceID, inst.ID, "url", inst.URL()))
	r.publish([]Event{ev})
	return nil
}

// ConfigureService installs the policies of cfg.Name and registers the
// instances it lists. Instances already registered under the name are kept.
func (r *Registry) ConfigureService(cfg ServiceConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return &ValidationError{Service: cfg.Name, Err: err}
	}

	now := r.now()
	events := make([]Event, 0, len(cfg.Instances))
	r.mu.Lock()
	svc, ok := r.services[cfg.Name]
	if !ok {
		svc = r.addService(cfg)
	} else {
		svc.config = cfg.clone()
		if cfg.CircuitBreaker == nil {
			clear(svc.breakers)
		}
		svc.stopHealthLoop()
	}
	for _, inst := range cfg.Instances {
		events = append(events, instanceEvent(EventRegistered, svc.upsert(inst, now), now))
	}
	r.ensureHealthLoop(svc)
	r.mu.Unlock()

	r.log.Info("service configured", logger.Fields(
		logger.FieldService, cfg.Name,
		"load_balancing", string(cfg.LoadBalancing),
		"instances", len(cfg.Instances),
		"health_check", cfg.HealthCheck != nil,
		"circuit_breaker", cfg.CircuitBreaker != nil,
	))
	r.publish(events)
	return nil
}

// DeregisterService removes one instance, or the whole service with its
// health loop and metrics when instanceID is empty. It reports whether
// anything was removed.
func (r *Registry) DeregisterService(name, instanceID string) bool {
	now := r.now()
	r.mu.Lock()
	svc, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		return false
	}

	var ev Event
	if instanceID == "" {
		svc.stopHealthLoop()
		delete(r.services, name)
		ev = Event{Type: EventDeregistered, Service: name, At: now}
	} else {
		inst := svc.remove(instanceID)
		if inst == nil {
			r.mu.Unlock()
			return false
		}
		ev = instanceEvent(EventDeregistered, inst, now)
	}
	r.mu.Unlock()

	r.log.Info("service deregistered", logger.InstanceFields(name, instanceID))
	r.publish([]Event{ev})
	return true
}

// Heartbeat marks an instance as alive.
func (r *Registry) Heartbeat(name, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return ErrInstanceNotFound
	}
	inst := svc.find(instanceID)
	if inst == nil {
		return ErrInstanceNotFound
	}
	inst.LastHeartbeat = r.now()
	return nil
}

// DiscoverOptions filter DiscoverService.
type DiscoverOptions struct {
	OnlyHealthy bool
	// Protocol keeps only instances speaking it, when set.
	Protocol string
}

// DiscoverService returns copies of the matching instances. An unknown
// service yields an empty slice.
func (r *Registry) DiscoverService(name string, opts DiscoverOptions) []ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []ServiceInstance{}
	svc, ok := r.services[name]
	if !ok {
		return out
	}
	for _, inst := range svc.instances {
		if opts.OnlyHealthy && !inst.IsHealthy() {
			continue
		}
		if opts.Protocol != "" && inst.Protocol != opts.Protocol {
			continue
		}
		out = append(out, inst.clone())
	}
	return out
}

// SelectOptions tune SelectInstance. An empty Strategy uses the one
// configured for the service.
type SelectOptions struct {
	Strategy    Strategy
	OnlyHealthy bool
}

// SelectInstance picks one instance of name, or reports false when none is
// eligible. Instances whose breaker is OPEN are skipped until their
// recovery timeout has passed; after that the breaker moves to HALF_OPEN and
// the instance is let through as a probe.
func (r *Registry) SelectInstance(name string, opts SelectOptions) (ServiceInstance, bool) {
	now := r.now()
	var events []Event
	r.mu.Lock()
	svc, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		return ServiceInstance{}, false
	}

	policy := svc.config.CircuitBreaker
	cands := make([]candidate, 0, len(svc.instances))
	for _, inst := range svc.instances {
		if opts.OnlyHealthy && !inst.IsHealthy() {
			continue
		}
		if policy != nil {
			b := svc.breaker(inst.ID)
			if b.state == resilience.StateOpen {
				if now.Sub(b.openedAt) < policy.RecoveryTimeout {
					continue
				}
				b.halfOpen(now)
				events = append(events, instanceEvent(EventCircuitHalfOpen, inst, now))
			}
		}
		cands = append(cands, candidate{inst: inst, metrics: svc.metricsFor(inst.ID)})
	}

	var selected ServiceInstance
	if len(cands) > 0 {
		strategy := opts.Strategy
		if strategy == "" {
			strategy = svc.config.LoadBalancing
		}
		selected = pick(strategy, cands, r.rng).clone()
	}
	r.mu.Unlock()

	r.publish(events)
	if len(cands) == 0 {
		r.log.Debug("no eligible instance", logger.Fields(logger.FieldService, name, "only_healthy", opts.OnlyHealthy))
		return ServiceInstance{}, false
	}
	return selected, true
}

// RecordRequest adds one request outcome to the instance counters and to
// its breaker history. Outcomes for unknown instances are dropped.
func (r *Registry) RecordRequest(name, instanceID string, responseTime time.Duration, success bool) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok || svc.find(instanceID) == nil {
		return
	}
	svc.metricsFor(instanceID).record(responseTime, success, now)
	if policy := svc.config.CircuitBreaker; policy != nil {
		svc.breaker(instanceID).observe(now, success, policy.MonitoringPeriod)
	}
}

func (r *Registry) Metrics(name, instanceID string) (ServiceMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok {
		return ServiceMetrics{}, false
	}
	m, ok := svc.metrics[instanceID]
	if !ok {
		return ServiceMetrics{}, false
	}
	return *m, true
}

// ServiceMetrics returns the counters of every instance of name, by id.
func (r *Registry) ServiceMetrics(name string) map[string]ServiceMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ServiceMetrics)
	if svc, ok := r.services[name]; ok {
		for id, m := range svc.metrics {
			out[id] = *m
		}
	}
	return out
}

func (r *Registry) ResetMetrics(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc, ok := r.services[name]; ok {
		for _, m := range svc.metrics {
			*m = ServiceMetrics{}
		}
	}
}

// Services returns the registered service names in order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Config returns the policies of name together with its current instances.
func (r *Registry) Config(name string) (ServiceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok {
		return ServiceConfig{}, false
	}
	cfg := svc.config.clone()
	for _, inst := range svc.instances {
		cfg.Instances = append(cfg.Instances, inst.clone())
	}
	return cfg, true
}

// InstanceBreakerState reports the breaker state of an instance. It is
// false when the service has no breaker policy or the instance is unknown.
func (r *Registry) InstanceBreakerState(name, instanceID string) (resilience.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok || svc.config.CircuitBreaker == nil || svc.find(instanceID) == nil {
		return resilience.StateClosed, false
	}
	if b, ok := svc.breakers[instanceID]; ok {
		return b.state, true
	}
	return resilience.StateClosed, true
}

// addService must be called with r.mu held.
func (r *Registry) addService(cfg ServiceConfig) *service {
	svc := &service{
		config:   cfg.clone(),
		metrics:  make(map[string]*ServiceMetrics),
		breakers: make(map[string]*instanceBreaker),
	}
	r.services[cfg.Name] = svc
	return svc
}

func (s *service) find(id string) *ServiceInstance {
	for _, inst := range s.instances {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

func (s *service) upsert(inst ServiceInstance, now time.Time) *ServiceInstance {
	inst = inst.clone()
	inst.LastHeartbeat = now
	if existing := s.find(inst.ID); existing != nil {
		inst.RegisteredAt = existing.RegisteredAt
		*existing = inst
		return existing
	}
	inst.RegisteredAt = now
	stored := &inst
	s.instances = append(s.instances, stored)
	s.metrics[inst.ID] = &ServiceMetrics{}
	return stored
}

func (s *service) remove(id string) *ServiceInstance {
	for i, inst := range s.instances {
		if inst.ID == id {
			s.instances = slices.Delete(s.instances, i, i+1)
			delete(s.metrics, id)
			delete(s.breakers, id)
			return inst
		}
	}
	return nil
}

func (s *service) metricsFor(id string) *ServiceMetrics {
	m, ok := s.metrics[id]
	if !ok {
		m = &ServiceMetrics{}
		s.metrics[id] = m
	}
	return m
}

func (s *service) breaker(id string) *instanceBreaker {
	b, ok := s.breakers[id]
	if !ok {
		b = &instanceBreaker{state: resilience.StateClosed}
		s.breakers[id] = b
	}
	return b
}

func (s *service) stopHealthLoop() {
	if s.stopHealth != nil {
		s.stopHealth()
		s.stopHealth = nil
	}
}
