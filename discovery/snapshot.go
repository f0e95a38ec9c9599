package discovery

// InstanceSnapshot is an instance with its counters and breaker state.
type InstanceSnapshot struct {
	ServiceInstance
	BaseURL string         `json:"url"`
	Metrics ServiceMetrics `json:"metrics"`
	// BreakerState is empty when the service has no breaker policy.
	BreakerState string `json:"breakerState,omitempty"`
}

type ServiceSnapshot struct {
	Name           string             `json:"name"`
	LoadBalancing  Strategy           `json:"loadBalancing"`
	HealthCheck    *HealthCheckConfig `json:"healthCheck,omitempty"`
	CircuitBreaker *BreakerPolicy     `json:"circuitBreaker,omitempty"`
	Instances      []InstanceSnapshot `json:"instances"`
}

// Snapshot copies the whole registry, ordered by service name.
func (r *Registry) Snapshot() []ServiceSnapshot {
	names := r.Services()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServiceSnapshot, 0, len(names))
	for _, name := range names {
		svc, ok := r.services[name]
		if !ok {
			continue
		}
		cfg := svc.config.clone()
		snap := ServiceSnapshot{
			Name:           name,
			LoadBalancing:  cfg.LoadBalancing,
			HealthCheck:    cfg.HealthCheck,
			CircuitBreaker: cfg.CircuitBreaker,
			Instances:      make([]InstanceSnapshot, 0, len(svc.instances)),
		}
		for _, inst := range svc.instances {
			is := InstanceSnapshot{ServiceInstance: inst.clone(), BaseURL: inst.URL()}
			if m, ok := svc.metrics[inst.ID]; ok {
				is.Metrics = *m
			}
			if cfg.CircuitBreaker != nil {
				is.BreakerState = "CLOSED"
				if b, ok := svc.breakers[inst.ID]; ok {
					is.BreakerState = b.state.String()
				}
			}
			snap.Instances = append(snap.Instances, is)
		}
		out = append(out, snap)
	}
	return out
}
