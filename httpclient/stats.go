package httpclient

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"time"
)

// RequestMetric records one completed logical request.
type RequestMetric struct {
	Service      string        `json:"service"`
	InstanceID   string        `json:"instanceId,omitempty"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	Status       int           `json:"status,omitempty"`
	ResponseTime time.Duration `json:"responseTime"`
	Success      bool          `json:"success"`
	Attempts     int           `json:"attempts"`
	RequestID    string        `json:"requestId"`
	Timestamp    time.Time     `json:"timestamp"`
}

// ServiceStats aggregates the buffered metrics of one service.
type ServiceStats struct {
	Service   string        `json:"service"`
	Count     int           `json:"count"`
	Errors    int           `json:"errors"`
	ErrorRate float64       `json:"errorRate"`
	Average   time.Duration `json:"average"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
}

// PerformanceReport ranks services by latency and by error rate.
type PerformanceReport struct {
	TotalRequests int            `json:"totalRequests"`
	Services      int            `json:"services"`
	Slowest       []ServiceStats `json:"slowest"`
	MostErrors    []ServiceStats `json:"mostErrors"`
}

const reportTop = 5

// metricsRing keeps the most recent request metrics, overwriting the oldest
// once full.
type metricsRing struct {
	mu    sync.Mutex
	buf   []RequestMetric
	next  int
	count int
}

func newMetricsRing(capacity int) *metricsRing {
	return &metricsRing{buf: make([]RequestMetric, capacity)}
}

func (r *metricsRing) add(m RequestMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = m
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// recent returns up to n metrics, oldest first. n <= 0 returns all.
func (r *metricsRing) recent(n int) []RequestMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]RequestMetric, n)
	start := (r.next - n + len(r.buf)) % len(r.buf)
	for i := range n {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *metricsRing) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *metricsRing) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.next, r.count = 0, 0
}

func aggregate(service string, metrics []RequestMetric) ServiceStats {
	s := ServiceStats{Service: service, Count: len(metrics)}
	if len(metrics) == 0 {
		return s
	}
	times := make([]time.Duration, len(metrics))
	var total time.Duration
	for i, m := range metrics {
		times[i] = m.ResponseTime
		total += m.ResponseTime
		if !m.Success {
			s.Errors++
		}
	}
	slices.Sort(times)
	s.ErrorRate = float64(s.Errors) / float64(s.Count)
	s.Average = total / time.Duration(len(times))
	s.P95 = percentile(times, 0.95)
	s.P99 = percentile(times, 0.99)
	return s
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	return sorted[max(0, min(rank, len(sorted)-1))]
}

func byService(metrics []RequestMetric) map[string][]RequestMetric {
	out := make(map[string][]RequestMetric)
	for _, m := range metrics {
		out[m.Service] = append(out[m.Service], m)
	}
	return out
}

func buildReport(metrics []RequestMetric) PerformanceReport {
	grouped := byService(metrics)
	all := make([]ServiceStats, 0, len(grouped))
	for name, ms := range grouped {
		all = append(all, aggregate(name, ms))
	}
	slices.SortFunc(all, func(a, b ServiceStats) int { return cmp.Compare(a.Service, b.Service) })

	slowest := slices.Clone(all)
	slices.SortStableFunc(slowest, func(a, b ServiceStats) int { return cmp.Compare(b.Average, a.Average) })

	errorProne := []ServiceStats{}
	for _, s := range all {
		if s.Errors > 0 {
			errorProne = append(errorProne, s)
		}
	}
	slices.SortStableFunc(errorProne, func(a, b ServiceStats) int { return cmp.Compare(b.ErrorRate, a.ErrorRate) })

	return PerformanceReport{
		TotalRequests: len(metrics),
		Services:      len(all),
		Slowest:       slowest[:min(reportTop, len(slowest))],
		MostErrors:    errorProne[:min(reportTop, len(errorProne))],
	}
}
