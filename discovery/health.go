package discovery

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/kbukum/meshkit/logger"
)

type probeTarget struct {
	id  string
	url string
}

// CheckServiceHealth probes every instance of name once and applies the
// results. A service without a health-check policy is probed with the
// default policy. A passing probe refreshes the instance's LastHeartbeat, so
// probed instances are not swept as stale. EventHealthChanged is published only for instances whose
// health flipped.
func (r *Registry) CheckServiceHealth(ctx context.Context, name string) error {
	r.mu.RLock()
	svc, ok := r.services[name]
	if !ok {
		r.mu.RUnlock()
		return ErrServiceNotFound
	}
	var policy HealthCheckConfig
	if svc.config.HealthCheck != nil {
		policy = *svc.config.HealthCheck
	}
	policy.ApplyDefaults()
	targets := make([]probeTarget, len(svc.instances))
	for i, inst := range svc.instances {
		targets[i] = probeTarget{id: inst.ID, url: inst.URL() + policy.Endpoint}
	}
	r.mu.RUnlock()

	results := make([]HealthStatus, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.probe(ctx, name, t, policy)
		}()
	}
	wg.Wait()

	now := r.now()
	var events []Event
	r.mu.Lock()
	if svc, ok := r.services[name]; ok {
		for i, t := range targets {
			inst := svc.find(t.id)
			if inst == nil {
				continue
			}
			// A passing probe proves liveness as well as a heartbeat does.
			if results[i] == HealthHealthy {
				inst.LastHeartbeat = now
			}
			if inst.Health == results[i] {
				continue
			}
			prev := inst.Health
			inst.Health = results[i]
			ev := instanceEvent(EventHealthChanged, inst, now)
			ev.PreviousHealth = prev
			events = append(events, ev)
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.log.Info("instance health changed", logger.Fields(
			logger.FieldService, ev.Service, logger.FieldInstanceID, ev.InstanceID,
			"from", string(ev.PreviousHealth), "to", string(ev.Instance.Health)))
	}
	r.publish(events)
	return nil
}

func (r *Registry) probe(ctx context.Context, service string, t probeTarget, policy HealthCheckConfig) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	hcErr := &HealthCheckError{Service: service, InstanceID: t.id, URL: t.url, Expected: policy.ExpectedStatus}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		hcErr.Err = err
		return r.unhealthy(hcErr)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		hcErr.Err = err
		return r.unhealthy(hcErr)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != policy.ExpectedStatus {
		hcErr.Status = resp.StatusCode
		return r.unhealthy(hcErr)
	}
	return HealthHealthy
}

func (r *Registry) unhealthy(err *HealthCheckError) HealthStatus {
	r.log.Warn("health check failed", logger.MergeWithError(
		logger.InstanceFields(err.Service, err.InstanceID), err))
	return HealthUnhealthy
}
