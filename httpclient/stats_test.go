package httpclient

import (
	"fmt"
	"testing"
	"time"
)

func TestMetricsRing_Wraps(t *testing.T) {
	r := newMetricsRing(3)
	for i := range 5 {
		r.add(RequestMetric{Service: fmt.Sprint(i)})
	}
	if r.size() != 3 {
		t.Fatalf("expected 3 buffered, got %d", r.size())
	}
	got := r.recent(0)
	for i, want := range []string{"2", "3", "4"} {
		if got[i].Service != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].Service, want)
		}
	}
	if last := r.recent(1); len(last) != 1 || last[0].Service != "4" {
		t.Errorf("recent(1) should be the newest, got %+v", last)
	}
	if all := r.recent(10); len(all) != 3 {
		t.Errorf("recent beyond size returns everything, got %d", len(all))
	}
}

func TestStats_Aggregate(t *testing.T) {
	var metrics []RequestMetric
	for i := 1; i <= 100; i++ {
		metrics = append(metrics, RequestMetric{
			Service:      "billing",
			ResponseTime: time.Duration(i) * time.Millisecond,
			Success:      i%10 != 0,
		})
	}
	s := aggregate("billing", metrics)
	if s.Count != 100 || s.Errors != 10 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.ErrorRate != 0.1 {
		t.Errorf("expected error rate 0.1, got %v", s.ErrorRate)
	}
	if s.Average != 50500*time.Microsecond {
		t.Errorf("expected average 50.5ms, got %v", s.Average)
	}
	if s.P95 != 95*time.Millisecond || s.P99 != 99*time.Millisecond {
		t.Errorf("unexpected percentiles p95=%v p99=%v", s.P95, s.P99)
	}

	empty := aggregate("none", nil)
	if empty.Count != 0 || empty.P99 != 0 {
		t.Errorf("unexpected empty stats %+v", empty)
	}
}

func TestStats_PercentileSmallSample(t *testing.T) {
	sorted := []time.Duration{10, 20}
	if got := percentile(sorted, 0.95); got != 20 {
		t.Errorf("expected the max for a two-element p95, got %v", got)
	}
	if got := percentile([]time.Duration{7}, 0.5); got != 7 {
		t.Errorf("single sample, got %v", got)
	}
}

func TestBuildReport_TopFive(t *testing.T) {
	var metrics []RequestMetric
	for i := range 7 {
		name := fmt.Sprintf("svc-%d", i)
		metrics = append(metrics,
			RequestMetric{Service: name, ResponseTime: time.Duration(i+1) * time.Millisecond, Success: true},
			RequestMetric{Service: name, ResponseTime: time.Duration(i+1) * time.Millisecond, Success: i < 2},
		)
	}
	report := buildReport(metrics)
	if report.TotalRequests != 14 || report.Services != 7 {
		t.Errorf("unexpected totals %+v", report)
	}
	if len(report.Slowest) != 5 {
		t.Fatalf("expected top 5 slowest, got %d", len(report.Slowest))
	}
	if report.Slowest[0].Service != "svc-6" || report.Slowest[4].Service != "svc-2" {
		t.Errorf("unexpected slowest order %+v", report.Slowest)
	}
	if len(report.MostErrors) != 5 {
		t.Fatalf("expected top 5 error-prone, got %d", len(report.MostErrors))
	}
	for _, s := range report.MostErrors {
		if s.Service == "svc-0" || s.Service == "svc-1" {
			t.Errorf("error-free %s listed as error-prone", s.Service)
		}
	}
}
