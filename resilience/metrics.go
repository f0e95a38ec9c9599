package resilience

import (
	"fmt"
	"time"
)

// Metrics is a point-in-time snapshot of a breaker.
type Metrics struct {
	Name             string        `json:"name"`
	State            State         `json:"state"`
	Failures         int64         `json:"failures"`
	Successes        int64         `json:"successes"`
	Timeouts         int64         `json:"timeouts"`
	TotalRequests    int64         `json:"totalRequests"`
	Rejections       int64         `json:"rejections"`
	ErrorRate        float64       `json:"errorRate"`
	Uptime           time.Duration `json:"uptime"`
	Downtime         time.Duration `json:"downtime"`
	LastFailureTime  time.Time     `json:"lastFailureTime,omitempty"`
	LastSuccessTime  time.Time     `json:"lastSuccessTime,omitempty"`
	StateChangedTime time.Time     `json:"stateChangedTime"`
}

// Metrics returns the counters since the last close or reset. Uptime is the
// time spent CLOSED, downtime the time spent OPEN or HALF_OPEN, both
// including the current state.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	uptime, downtime := cb.uptime, cb.downtime
	if cb.state == StateClosed {
		uptime += now.Sub(cb.changedAt)
	} else {
		downtime += now.Sub(cb.changedAt)
	}

	var rate float64
	if cb.totalRequests > 0 {
		rate = float64(cb.failures+cb.timeouts) / float64(cb.totalRequests)
	}

	return Metrics{
		Name:             cb.cfg.Name,
		State:            cb.state,
		Failures:         cb.failures,
		Successes:        cb.successes,
		Timeouts:         cb.timeouts,
		TotalRequests:    cb.totalRequests,
		Rejections:       cb.rejections,
		ErrorRate:        rate,
		Uptime:           uptime,
		Downtime:         downtime,
		LastFailureTime:  cb.lastFailure,
		LastSuccessTime:  cb.lastSuccess,
		StateChangedTime: cb.changedAt,
	}
}

// Health summarizes a breaker for operators.
type Health struct {
	Name      string  `json:"name"`
	State     State   `json:"state"`
	Healthy   bool    `json:"healthy"`
	ErrorRate float64 `json:"errorRate"`
	// Recommendations are advisory and never drive behavior.
	Recommendations []string `json:"recommendations,omitempty"`
}

// Health is healthy iff the breaker is CLOSED.
func (cb *CircuitBreaker) Health() Health {
	m := cb.Metrics()
	return Health{
		Name:            m.Name,
		State:           m.State,
		Healthy:         m.State == StateClosed,
		ErrorRate:       m.ErrorRate,
		Recommendations: recommend(cb.cfg, m),
	}
}

func recommend(cfg Config, m Metrics) []string {
	var out []string
	switch m.State {
	case StateOpen:
		out = append(out, fmt.Sprintf("%s is failing; calls are rejected for up to %s after opening", m.Name, cfg.RecoveryTimeout))
	case StateHalfOpen:
		out = append(out, fmt.Sprintf("%s is being probed; keep traffic low until it closes", m.Name))
	}
	if m.State == StateClosed && m.TotalRequests > 0 && m.ErrorRate >= cfg.ExpectedErrorRate/2 {
		out = append(out, fmt.Sprintf("error rate %.0f%% is approaching the trip threshold", m.ErrorRate*100))
	}
	if m.Timeouts > 0 && m.Timeouts >= m.Failures {
		out = append(out, "most failures are timeouts; check dependency latency or raise the timeout")
	}
	if m.Rejections > int64(cfg.FailureThreshold)*10 {
		out = append(out, "many calls were rejected; add a fallback or reduce caller retries")
	}
	return out
}
