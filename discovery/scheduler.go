package discovery

import (
	"context"
	"time"

	"github.com/kbukum/meshkit/logger"
)

// Start launches the stale sweep, the breaker evaluation and one health
// loop per service with a health-check policy. The loops outlive ctx and
// run until Stop. Calling Start twice is a no-op.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.bgCtx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.running = true

	r.wg.Add(2)
	go r.every(r.bgCtx, r.cfg.SweepInterval, func() { r.SweepStale() })
	go r.every(r.bgCtx, r.cfg.BreakerEvalInterval, r.EvaluateBreakers)
	for _, svc := range r.services {
		r.ensureHealthLoop(svc)
	}

	r.log.Info("registry started", logger.Fields(
		"sweep_interval", r.cfg.SweepInterval.String(),
		"stale_after", r.cfg.StaleAfter.String(),
		"breaker_eval_interval", r.cfg.BreakerEvalInterval.String(),
	))
	return nil
}

// Stop cancels every background loop and waits for them to return.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	for _, svc := range r.services {
		svc.stopHealth = nil
	}
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.log.Info("registry stopped")
}

func (r *Registry) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// SweepStale drops every instance whose last heartbeat is older than
// StaleAfter and returns how many were dropped.
func (r *Registry) SweepStale() int {
	now := r.now()
	var events []Event
	r.mu.Lock()
	for _, svc := range r.services {
		var stale []string
		for _, inst := range svc.instances {
			if now.Sub(inst.LastHeartbeat) > r.cfg.StaleAfter {
				stale = append(stale, inst.ID)
			}
		}
		for _, id := range stale {
			inst := svc.remove(id)
			events = append(events, instanceEvent(EventInstanceExpired, inst, now))
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.log.Warn("stale instance removed", logger.Fields(
			logger.FieldService, ev.Service, logger.FieldInstanceID, ev.InstanceID,
			"last_heartbeat", ev.Instance.LastHeartbeat))
	}
	r.publish(events)
	return len(events)
}

// ensureHealthLoop must be called with r.mu held.
func (r *Registry) ensureHealthLoop(svc *service) {
	if !r.running || svc.config.HealthCheck == nil || svc.stopHealth != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.bgCtx)
	svc.stopHealth = cancel
	name := svc.config.Name
	r.wg.Add(1)
	go r.every(ctx, svc.config.HealthCheck.Interval, func() {
		if err := r.CheckServiceHealth(ctx, name); err != nil {
			r.log.Debug("health loop ended", logger.MergeWithError(logger.Fields(logger.FieldService, name), err))
			cancel()
		}
	})
}

func (r *Registry) every(ctx context.Context, interval time.Duration, fn func()) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
