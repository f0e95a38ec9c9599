// Package resilience holds the failure-isolation primitives used by the
// registry and the resilient client.
//
//   - CircuitBreaker: CLOSED / OPEN / HALF_OPEN state machine with a
//     failure-threshold or sliding-window trip condition, per-call timeout,
//     optional fallback and uptime/downtime accounting.
//   - Registry: keyed breakers with an aggregate health report.
//   - Retry: exponential backoff with optional jitter.
//   - Bulkhead: bounded concurrency.
//   - RateLimiter: token bucket.
//
// A breaker wraps a call:
//
//	cb := resilience.NewCircuitBreaker(resilience.Config{Name: "billing", FailureThreshold: 3})
//	out, err := resilience.Run(ctx, cb, func(ctx context.Context) (*Invoice, error) {
//	    return billing.Fetch(ctx, id)
//	})
//	if errors.Is(err, resilience.ErrCircuitOpen) { ... }
//
// Adapters that cannot wrap a closure call Allow before the work and Record
// after it.
package resilience
