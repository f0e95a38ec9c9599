package discovery

import "time"

// ServiceMetrics are the request counters of one instance. They only grow
// until ResetMetrics.
type ServiceMetrics struct {
	RequestCount        int64         `json:"requestCount"`
	ErrorCount          int64         `json:"errorCount"`
	ResponseTimeSum     time.Duration `json:"responseTimeSum"`
	CircuitBreakerTrips int64         `json:"circuitBreakerTrips"`
	LastRequest         time.Time     `json:"lastRequest"`
}

func (m ServiceMetrics) AverageResponseTime() time.Duration {
	if m.RequestCount == 0 {
		return 0
	}
	return m.ResponseTimeSum / time.Duration(m.RequestCount)
}

func (m ServiceMetrics) ErrorRate() float64 {
	if m.RequestCount == 0 {
		return 0
	}
	return float64(m.ErrorCount) / float64(m.RequestCount)
}

func (m *ServiceMetrics) record(responseTime time.Duration, success bool, at time.Time) {
	m.RequestCount++
	if !success {
		m.ErrorCount++
	}
	m.ResponseTimeSum += responseTime
	m.LastRequest = at
}
