package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/resilience"
)

var _ resilience.MetricsRecorder = (*Metrics)(nil)

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{Enabled: true, ServiceName: "meshd"}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.SampleRate = 1.5
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "sample_rate") {
		t.Errorf("expected sample_rate error, got %v", err)
	}

	disabled := Config{SampleRate: 7}
	if err := disabled.Validate(); err != nil {
		t.Errorf("disabled config should not be validated, got %v", err)
	}
}

func TestInitDisabled(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tracer != nil || p.Meter != nil {
		t.Error("disabled config must not install providers")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of empty providers: %v", err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRequestStart(ctx)
	m.RecordRequestEnd(ctx, "svc", "a", "ok", time.Millisecond)
	m.RecordRetry(ctx, "svc", 1)
	m.RecordBreakerTransition(ctx, "svc", "CLOSED", "OPEN")
	m.RecordBreakerRejection(ctx, "svc")
	m.RecordRegistryEvent(ctx, "svc", "registered")
	m.RecordError(ctx, "TIMEOUT", "client")
}

func TestNewMetricsNoopMeter(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	m.RecordRequestEnd(context.Background(), "svc", "a", "ok", time.Millisecond)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			out[md.Name] = md.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.RecordRequestStart(ctx)
	m.RecordRequestStart(ctx)
	m.RecordRequestEnd(ctx, "billing", "b1", "ok", 20*time.Millisecond)
	m.RecordRetry(ctx, "billing", 1)
	m.RecordBreakerTransition(ctx, "billing", "CLOSED", "OPEN")
	m.RecordBreakerRejection(ctx, "billing")
	m.RecordBreakerRejection(ctx, "billing")
	m.RecordRegistryEvent(ctx, "billing", "registered")
	m.RecordError(ctx, "CIRCUIT_OPEN", "client")

	got := collect(t, reader)
	checks := map[string]int64{
		"client.request.total":     1,
		"client.request.active":    1,
		"client.retry.total":       1,
		"breaker.transition.total": 1,
		"breaker.rejection.total":  2,
		"registry.event.total":     1,
		"error.total":              1,
	}
	for name, want := range checks {
		data, ok := got[name]
		if !ok {
			t.Errorf("metric %s not collected", name)
			continue
		}
		if v := sumOf(t, data); v != want {
			t.Errorf("%s: expected %d, got %d", name, want, v)
		}
	}

	hist, ok := got["client.request.duration"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("unexpected duration histogram %+v", got["client.request.duration"])
	}
}

func TestOperationContextSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	oc := NewOperationContext("billing", "GET /invoices", "req-1", nil)
	ctx, span := oc.StartSpan(context.Background(), SpanClientRequest)
	if OperationContextFromContext(ctx) != oc {
		t.Error("operation context should be stored in the returned ctx")
	}
	oc.EndOperation(ctx, span, "b1", "error", errors.New("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name != SpanClientRequest {
		t.Errorf("unexpected span name %q", s.Name)
	}
	attrs := map[attribute.Key]string{}
	for _, kv := range s.Attributes {
		attrs[kv.Key] = kv.Value.Emit()
	}
	if attrs[AttrServiceName] != "billing" || attrs[AttrInstanceID] != "b1" || attrs[AttrErrorMessage] != "boom" {
		t.Errorf("unexpected attributes %v", attrs)
	}
	if len(s.Events) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestOperationContextFromEmptyContext(t *testing.T) {
	if OperationContextFromContext(context.Background()) != nil {
		t.Error("expected nil")
	}
}

func TestInjectHeaders(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })
	otel.SetTextMapPropagator(tracePropagator())

	headers := map[string]string{}
	InjectHeaders(ctx, headers)
	if !strings.HasPrefix(headers["traceparent"], "00-") {
		t.Errorf("expected traceparent header, got %v", headers)
	}
}

type staticChecker component.Health

func (s staticChecker) Health(context.Context) component.Health { return component.Health(s) }

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("meshd", "dev").Check(context.Background(),
		staticChecker{Name: "discovery", Status: component.StatusHealthy},
		staticChecker{Name: "client", Status: component.StatusDegraded},
	)
	if sh.Status != component.StatusDegraded || !sh.Healthy() {
		t.Errorf("expected degraded but serving, got %s", sh.Status)
	}
	sh.AddComponent(component.Health{Name: "server", Status: component.StatusUnhealthy})
	if sh.Status != component.StatusUnhealthy || sh.Healthy() {
		t.Errorf("expected unhealthy, got %s", sh.Status)
	}
	if len(sh.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(sh.Components))
	}
}

func TestInitTracerAndMeter(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Enabled: true, ServiceName: "test", Endpoint: "localhost:4318", Insecure: true}
	cfg.ApplyDefaults()
	p, err := Init(ctx, cfg)
	if err != nil {
		t.Skipf("skipping: providers could not be created: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("expected both providers")
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}
