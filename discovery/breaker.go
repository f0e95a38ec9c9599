package discovery

import (
	"time"

	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/resilience"
)

// maxOutcomes caps the per-instance outcome history.
const maxOutcomes = 1000

type outcome struct {
	at      time.Time
	success bool
}

// instanceBreaker is the registry-side breaker of one instance. It is
// evaluated periodically from recorded outcomes rather than wrapping calls.
type instanceBreaker struct {
	state        resilience.State
	openedAt     time.Time
	halfOpenedAt time.Time
	outcomes     []outcome
}

func (b *instanceBreaker) observe(at time.Time, success bool, period time.Duration) {
	b.outcomes = append(b.outcomes, outcome{at: at, success: success})
	b.prune(at, period)
}

func (b *instanceBreaker) prune(now time.Time, period time.Duration) {
	cutoff := now.Add(-period)
	i := 0
	for i < len(b.outcomes) && b.outcomes[i].at.Before(cutoff) {
		i++
	}
	if n := len(b.outcomes) - i; n > maxOutcomes {
		i += n - maxOutcomes
	}
	if i > 0 {
		b.outcomes = append(b.outcomes[:0], b.outcomes[i:]...)
	}
}

func (b *instanceBreaker) failuresSince(t time.Time) int {
	n := 0
	for _, o := range b.outcomes {
		if !o.success && !o.at.Before(t) {
			n++
		}
	}
	return n
}

func (b *instanceBreaker) succeededSince(t time.Time) bool {
	for _, o := range b.outcomes {
		if o.success && !o.at.Before(t) {
			return true
		}
	}
	return false
}

func (b *instanceBreaker) open(now time.Time) {
	b.state = resilience.StateOpen
	b.openedAt = now
}

func (b *instanceBreaker) halfOpen(now time.Time) {
	b.state = resilience.StateHalfOpen
	b.halfOpenedAt = now
}

func (b *instanceBreaker) close() {
	b.state = resilience.StateClosed
	b.openedAt = time.Time{}
	b.halfOpenedAt = time.Time{}
	b.outcomes = b.outcomes[:0]
}

// EvaluateBreakers runs one evaluation pass over every instance of the
// services that have a breaker policy:
//
//   - CLOSED trips to OPEN when the failures inside the monitoring period
//     reach the threshold;
//   - HALF_OPEN closes on a success in the second half of the monitoring
//     period, and re-opens once that half has passed without one.
//
// OPEN breakers are left alone; SelectInstance moves them to HALF_OPEN.
func (r *Registry) EvaluateBreakers() {
	now := r.now()
	var events []Event
	r.mu.Lock()
	for _, svc := range r.services {
		policy := svc.config.CircuitBreaker
		if policy == nil {
			continue
		}
		half := policy.MonitoringPeriod / 2
		for _, inst := range svc.instances {
			b := svc.breaker(inst.ID)
			b.prune(now, policy.MonitoringPeriod)
			switch b.state {
			case resilience.StateClosed:
				if b.failuresSince(now.Add(-policy.MonitoringPeriod)) >= policy.FailureThreshold {
					b.open(now)
					svc.metricsFor(inst.ID).CircuitBreakerTrips++
					events = append(events, instanceEvent(EventCircuitOpened, inst, now))
				}
			case resilience.StateHalfOpen:
				since := now.Add(-half)
				if b.halfOpenedAt.After(since) {
					since = b.halfOpenedAt
				}
				switch {
				case b.succeededSince(since):
					b.close()
					events = append(events, instanceEvent(EventCircuitClosed, inst, now))
				case now.Sub(b.halfOpenedAt) >= half:
					b.open(now)
					events = append(events, instanceEvent(EventCircuitOpened, inst, now))
				}
			}
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.log.Info("instance circuit breaker transition", logger.Fields(
			logger.FieldService, ev.Service, logger.FieldInstanceID, ev.InstanceID, "event", string(ev.Type)))
	}
	r.publish(events)
}
