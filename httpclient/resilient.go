package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/meshkit/discovery"
	apperrors "github.com/kbukum/meshkit/errors"
	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/observability"
	"github.com/kbukum/meshkit/resilience"
)

// Outbound headers.
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderCorrelationID  = "X-Correlation-ID"
	HeaderCallingService = "X-Calling-Service"
)

// InstanceRegistry is the part of the service registry the client needs.
// *discovery.Registry satisfies it.
type InstanceRegistry interface {
	SelectInstance(name string, opts discovery.SelectOptions) (discovery.ServiceInstance, bool)
	RecordRequest(name, instanceID string, responseTime time.Duration, success bool)
}

// ResilientOption configures a Resilient client.
type ResilientOption func(*Resilient)

// WithCircuitBreakers runs every attempt through the breaker named after
// the target service.
func WithCircuitBreakers(r *resilience.Registry) ResilientOption {
	return func(c *Resilient) { c.breakers = r }
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) ResilientOption {
	return func(c *Resilient) { c.client.httpClient = hc }
}

func WithMetrics(m *observability.Metrics) ResilientOption {
	return func(c *Resilient) { c.metrics = m }
}

func WithClock(now func() time.Time) ResilientOption {
	return func(c *Resilient) { c.now = now }
}

// Resilient calls services by name: it picks an instance from the registry,
// retries with exponential backoff, reports the outcome back to the
// registry and falls back when asked to.
type Resilient struct {
	client   *Client
	config   Config
	registry InstanceRegistry
	breakers *resilience.Registry
	metrics  *observability.Metrics
	bulkhead *resilience.Bulkhead
	ring     *metricsRing
	now      func() time.Time
	log      *logger.Logger
}

// NewResilient creates a client over reg.
func NewResilient(cfg Config, reg InstanceRegistry, log *logger.Logger, opts ...ResilientOption) (*Resilient, error) {
	if reg == nil {
		return nil, errors.New("httpclient: instance registry is required")
	}
	base, err := New(cfg)
	if err != nil {
		return nil, err
	}
	cfg = base.config

	c := &Resilient{
		client:   base,
		config:   cfg,
		registry: reg,
		ring:     newMetricsRing(cfg.MetricsCapacity),
		now:      time.Now,
		log:      logger.OrNop(log).WithComponent("httpclient"),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "httpclient-bulk",
			MaxConcurrent: cfg.BulkConcurrency,
			MaxWait:       resilience.WaitForSlot,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request sends one logical request to service. path is appended to the
// selected instance's URL.
//
// Attempts go to the same instance. A failed attempt, including a non-2xx
// response, is retried after RetryDelay × 2^(attempt−1) until Retries extra
// attempts have been made. The outcome is recorded against the instance
// once. With a Fallback, exhausting the attempts or finding no instance
// returns the fallback's data under InstanceID "fallback".
func (c *Resilient) Request(ctx context.Context, service, path string, opts RequestOptions) (*Result, error) {
	opts = c.withDefaults(opts)
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = requestID
	}

	log := c.log.WithFields(logger.Fields(
		logger.FieldService, service,
		logger.FieldRequestID, requestID,
		logger.FieldCorrelationID, correlationID,
	))
	oc := observability.NewOperationContext(service, opts.Method+" "+path, requestID, c.metrics)
	ctx, span := oc.StartSpan(ctx, observability.SpanClientRequest)
	ctx = logger.ContextWithRequestID(ctx, requestID)
	ctx = logger.ContextWithCorrelationID(ctx, correlationID)

	start := c.now()
	metric := RequestMetric{
		Service:   service,
		Method:    opts.Method,
		Path:      path,
		RequestID: requestID,
	}

	inst, ok := c.registry.SelectInstance(service, discovery.SelectOptions{
		Strategy:    opts.LoadBalancing,
		OnlyHealthy: *opts.OnlyHealthy,
	})
	if !ok {
		err := NewNoInstanceError(service, &discovery.NoHealthyInstanceError{Service: service})
		log.Warn("no instance available")
		c.finish(ctx, metric, start, err)
		oc.EndOperation(ctx, span, "", "no_instance", err)
		return c.fallback(ctx, opts, err, log)
	}

	metric.InstanceID = inst.ID
	req := Request{
		Method:  opts.Method,
		Path:    inst.URL() + path,
		Headers: c.headers(ctx, opts.Headers, requestID, correlationID),
		Query:   opts.Params,
		Body:    opts.Data,
	}

	var attempts, sent int
	resp, err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    *opts.Retries + 1,
		InitialBackoff: opts.RetryDelay,
		RetryIf:        resilience.DefaultRetryIf,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn("request attempt failed, retrying", logger.MergeWithError(logger.Fields(
				logger.FieldInstanceID, inst.ID,
				logger.FieldAttempt, attempt,
				"backoff", wait.String(),
			), err))
			c.metrics.RecordRetry(ctx, service, attempt)
		},
	}, func(ctx context.Context, attempt int) (*Response, error) {
		attempts = attempt
		return c.attempt(ctx, service, req, opts.Timeout, func() { sent++ })
	})

	metric.Attempts = attempts
	var he *Error
	switch {
	case resp != nil:
		metric.Status = resp.StatusCode
	case errors.As(err, &he):
		metric.Status = he.StatusCode
		if he.Service == "" {
			he.Service = service
		}
	}
	elapsed := c.finish(ctx, metric, start, err)
	// Calls rejected by the service breaker never reached the instance.
	if sent > 0 {
		c.registry.RecordRequest(service, inst.ID, elapsed, err == nil)
	}

	if err != nil {
		log.Error("request failed", logger.MergeWithError(logger.Fields(
			logger.FieldInstanceID, inst.ID,
			logger.FieldAttempt, attempts,
			logger.FieldDuration, elapsed.Milliseconds(),
		), err))
		oc.EndOperation(ctx, span, inst.ID, "error", err)
		return c.fallback(ctx, opts, err, log)
	}

	oc.EndOperation(ctx, span, inst.ID, "ok", nil)
	log.Debug("request completed", logger.Fields(
		logger.FieldInstanceID, inst.ID,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldAttempt, attempts,
		logger.FieldDuration, elapsed.Milliseconds(),
	))
	return &Result{
		Data:         decodeBody(resp.Headers, resp.Body),
		Status:       resp.StatusCode,
		Headers:      resp.Headers,
		ResponseTime: elapsed,
		InstanceID:   inst.ID,
		Success:      true,
		Attempts:     attempts,
		Body:         resp.Body,
	}, nil
}

func (c *Resilient) Get(ctx context.Context, service, path string, opts RequestOptions) (*Result, error) {
	opts.Method = http.MethodGet
	return c.Request(ctx, service, path, opts)
}

func (c *Resilient) Post(ctx context.Context, service, path string, data any, opts RequestOptions) (*Result, error) {
	opts.Method, opts.Data = http.MethodPost, data
	return c.Request(ctx, service, path, opts)
}

func (c *Resilient) Put(ctx context.Context, service, path string, data any, opts RequestOptions) (*Result, error) {
	opts.Method, opts.Data = http.MethodPut, data
	return c.Request(ctx, service, path, opts)
}

func (c *Resilient) Patch(ctx context.Context, service, path string, data any, opts RequestOptions) (*Result, error) {
	opts.Method, opts.Data = http.MethodPatch, data
	return c.Request(ctx, service, path, opts)
}

func (c *Resilient) Delete(ctx context.Context, service, path string, opts RequestOptions) (*Result, error) {
	opts.Method = http.MethodDelete
	return c.Request(ctx, service, path, opts)
}

// RequestBulk runs all requests concurrently, at most BulkConcurrency at a
// time. Results are in input order and each one settles on its own.
func (c *Resilient) RequestBulk(ctx context.Context, reqs []BulkRequest) []BulkResult {
	results := make([]BulkResult, len(reqs))
	var wg sync.WaitGroup
	for i, r := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := resilience.ExecuteWithResult(ctx, c.bulkhead, func(ctx context.Context) (*Result, error) {
				return c.Request(ctx, r.Service, r.Path, r.Options)
			})
			results[i] = BulkResult{Result: res, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// ServiceStats aggregates the buffered metrics of service.
func (c *Resilient) ServiceStats(service string) ServiceStats {
	return aggregate(service, byService(c.ring.recent(0))[service])
}

// PerformanceReport lists the five slowest and the five most error-prone
// services among the buffered metrics.
func (c *Resilient) PerformanceReport() PerformanceReport {
	return buildReport(c.ring.recent(0))
}

// RecentMetrics returns up to n buffered metrics, oldest first.
func (c *Resilient) RecentMetrics(n int) []RequestMetric {
	return c.ring.recent(n)
}

func (c *Resilient) ResetMetrics() {
	c.ring.reset()
}

// Client returns the transport client.
func (c *Resilient) Client() *Client {
	return c.client
}

func (c *Resilient) Config() Config {
	return c.config
}

// attempt makes one call under timeout, through the service's breaker when
// breakers are attached. The per-attempt deadline does not touch ctx, so a
// later attempt gets a fresh one.
func (c *Resilient) attempt(ctx context.Context, service string, req Request, timeout time.Duration, onSend func()) (*Response, error) {
	call := func(ctx context.Context) (*Response, error) {
		onSend()
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return c.client.do(actx, req)
	}
	if c.breakers == nil {
		return call(ctx)
	}
	return resilience.Run(ctx, c.breakers.GetOrCreate(service), call)
}

func (c *Resilient) withDefaults(opts RequestOptions) RequestOptions {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.Timeout <= 0 {
		opts.Timeout = c.config.Timeout
	}
	if opts.Retries == nil {
		opts.Retries = c.config.Retries
	}
	if *opts.Retries < 0 {
		opts.Retries = Ptr(0)
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = c.config.RetryDelay
	}
	if opts.OnlyHealthy == nil {
		opts.OnlyHealthy = Ptr(true)
	}
	return opts
}

func (c *Resilient) headers(ctx context.Context, extra map[string]string, requestID, correlationID string) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	observability.InjectHeaders(ctx, h)
	for k, v := range extra {
		h[k] = v
	}
	h[HeaderRequestID] = requestID
	h[HeaderCorrelationID] = correlationID
	if c.config.ServiceName != "" {
		h[HeaderCallingService] = c.config.ServiceName
	}
	return h
}

// finish stamps and buffers the metric and returns the elapsed time.
func (c *Resilient) finish(ctx context.Context, m RequestMetric, start time.Time, err error) time.Duration {
	m.Timestamp = c.now()
	m.ResponseTime = m.Timestamp.Sub(start)
	m.Success = err == nil
	c.ring.add(m)
	if err != nil {
		c.metrics.RecordError(ctx, string(apperrors.From(err).Code), "httpclient")
	}
	return m.ResponseTime
}

func (c *Resilient) fallback(ctx context.Context, opts RequestOptions, err error, log *logger.Logger) (*Result, error) {
	if opts.Fallback == nil {
		return nil, err
	}
	data, fbErr := opts.Fallback(ctx, err)
	if fbErr != nil {
		log.Error("fallback failed", logger.MergeWithError(nil, fbErr))
		return nil, errors.Join(err, fbErr)
	}
	log.Info("serving fallback", logger.MergeWithError(nil, err))
	return &Result{Data: data, InstanceID: FallbackInstanceID}, nil
}
