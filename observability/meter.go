package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/meshkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a global meter provider with a periodic OTLP reader.
// Shut the returned provider down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the mesh instruments. A nil *Metrics records nothing, so
// callers never need to guard their calls.
type Metrics struct {
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	requestActive     metric.Int64UpDownCounter
	retryTotal        metric.Int64Counter
	breakerTransition metric.Int64Counter
	breakerRejection  metric.Int64Counter
	registryEvent     metric.Int64Counter
	errorTotal        metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.requestTotal, "client.request.total", "Requests sent to service instances"},
		{&m.retryTotal, "client.retry.total", "Request retries"},
		{&m.breakerTransition, "breaker.transition.total", "Circuit breaker state transitions"},
		{&m.breakerRejection, "breaker.rejection.total", "Calls rejected by an open circuit breaker"},
		{&m.registryEvent, "registry.event.total", "Service registry events"},
		{&m.errorTotal, "error.total", "Errors by code and component"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	m.requestDuration, err = meter.Float64Histogram("client.request.duration",
		metric.WithDescription("Duration of requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.request.duration histogram: %w", err)
	}

	m.requestActive, err = meter.Int64UpDownCounter("client.request.active",
		metric.WithDescription("Requests currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.request.active gauge: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordRequestStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed one.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, instance, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("instance", instance),
		attribute.String("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
	))
}

func (m *Metrics) RecordRetry(ctx context.Context, service string, attempt int) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.Int("attempt", attempt),
	))
}

func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransition.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) RecordBreakerRejection(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.breakerRejection.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", name)))
}

func (m *Metrics) RecordRegistryEvent(ctx context.Context, service, event string) {
	if m == nil {
		return
	}
	m.registryEvent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("event", event),
	))
}

// RecordError counts an error by its code and the component that saw it.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
