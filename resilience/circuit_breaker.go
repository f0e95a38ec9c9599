package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/meshkit/logger"
)

// Fallback produces a substitute result when the operation fails or the
// breaker rejects it. err is the failure being replaced.
type Fallback func(ctx context.Context, err error) (any, error)

// MetricsRecorder receives breaker telemetry.
type MetricsRecorder interface {
	RecordBreakerTransition(ctx context.Context, name, from, to string)
	RecordBreakerRejection(ctx context.Context, name string)
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

func WithFallback(fn Fallback) BreakerOption {
	return func(cb *CircuitBreaker) { cb.fallback = fn }
}

// WithStateChangeHook registers fn for every transition. Hooks run after the
// breaker's lock is released, in registration order.
func WithStateChangeHook(fn func(StateChange)) BreakerOption {
	return func(cb *CircuitBreaker) { cb.hooks = append(cb.hooks, fn) }
}

func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

func WithMetrics(m MetricsRecorder) BreakerOption {
	return func(cb *CircuitBreaker) { cb.metrics = m }
}

func WithLogger(l *logger.Logger) BreakerOption {
	return func(cb *CircuitBreaker) { cb.log = l }
}

type outcome struct {
	at      time.Time
	success bool
	timeout bool
}

// CircuitBreaker isolates a failing dependency.
//
// CLOSED passes calls through. Once the trip condition holds it moves to
// OPEN and rejects calls until RecoveryTimeout has elapsed since opening;
// the next call then moves it to HALF_OPEN and runs as a probe.
// SuccessThreshold successes in HALF_OPEN close it again and zero the
// counters, while any failure in HALF_OPEN re-opens it.
type CircuitBreaker struct {
	cfg      Config
	fallback Fallback
	hooks    []func(StateChange)
	now      func() time.Time
	metrics  MetricsRecorder
	log      *logger.Logger

	mu            sync.Mutex
	state         State
	failures      int64
	successes     int64
	timeouts      int64
	totalRequests int64
	rejections    int64
	changedAt     time.Time
	openedAt      time.Time
	lastFailure   time.Time
	lastSuccess   time.Time
	uptime        time.Duration
	downtime      time.Duration
	window        []outcome
	openGen       uint64
	resetTimer    *time.Timer
	pending       []StateChange
}

// NewCircuitBreaker creates a CLOSED breaker. Zero config fields take their
// defaults; an invalid config panics, so validate user input first.
func NewCircuitBreaker(cfg Config, opts ...BreakerOption) *CircuitBreaker {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("resilience: invalid circuit breaker config %q: %v", cfg.Name, err))
	}

	cb := &CircuitBreaker{cfg: cfg, now: time.Now, state: StateClosed}
	for _, opt := range opts {
		opt(cb)
	}
	cb.log = logger.OrNop(cb.log).WithComponent("breaker").WithFields(logger.Fields(logger.FieldBreaker, cfg.Name))
	cb.changedAt = cb.now()
	return cb
}

func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() Config { return cb.cfg }

// State returns the current state. The OPEN -> HALF_OPEN move happens on the
// next call, not here.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs op through the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	if err := cb.allow(ctx); err != nil {
		return cb.fallbackOr(ctx, err)
	}

	result, err := cb.guarded(ctx, op)
	switch {
	case err == nil:
		cb.Record(true, false)
		return result, nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// The caller gave up; that says nothing about the dependency.
		return nil, err
	default:
		cb.Record(false, isTimeout(err))
		return cb.fallbackOr(ctx, err)
	}
}

// ExecuteFunc is Execute for operations without a result.
func (cb *CircuitBreaker) ExecuteFunc(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := cb.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	return err
}

// Run is the typed form of Execute. A fallback result that is not a T is
// reported as an error.
func Run[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	res, err := cb.Execute(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if res == nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker %s: result is %T, want %T", cb.cfg.Name, res, zero)
	}
	return v, err
}

// Rejecting reports whether Allow would reject a call now. It changes no
// state and counts no rejection.
func (cb *CircuitBreaker) Rejecting() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen && cb.now().Sub(cb.openedAt) < cb.cfg.RecoveryTimeout
}

// Allow reports whether a call may proceed, moving OPEN to HALF_OPEN once
// RecoveryTimeout has elapsed. The caller must Record the outcome of every
// allowed call.
func (cb *CircuitBreaker) Allow() error {
	return cb.allow(context.Background())
}

func (cb *CircuitBreaker) allow(ctx context.Context) error {
	var rejected *CircuitOpenError
	cb.locked(func(now time.Time) {
		if cb.state != StateOpen {
			return
		}
		if since := now.Sub(cb.openedAt); since < cb.cfg.RecoveryTimeout {
			cb.rejections++
			rejected = &CircuitOpenError{Name: cb.cfg.Name, RetryAfter: cb.cfg.RecoveryTimeout - since}
			return
		}
		cb.transition(StateHalfOpen, now)
	})
	if rejected != nil && cb.metrics != nil {
		cb.metrics.RecordBreakerRejection(ctx, cb.cfg.Name)
	}
	if rejected != nil {
		return rejected
	}
	return nil
}

// Record feeds one outcome into the breaker. timeout marks a failure as a
// deadline overrun and is ignored when success is true.
func (cb *CircuitBreaker) Record(success, timeout bool) {
	cb.locked(func(now time.Time) {
		cb.totalRequests++
		cb.observe(outcome{at: now, success: success, timeout: timeout && !success})

		if success {
			cb.successes++
			cb.lastSuccess = now
			if cb.state == StateHalfOpen && cb.successes >= int64(cb.cfg.SuccessThreshold) {
				cb.transition(StateClosed, now)
			}
			return
		}

		if timeout {
			cb.timeouts++
		} else {
			cb.failures++
		}
		cb.lastFailure = now

		switch cb.state {
		case StateClosed:
			if cb.shouldTrip(now) {
				cb.transition(StateOpen, now)
			}
		case StateHalfOpen:
			cb.transition(StateOpen, now)
		}
	})
}

// ForceOpen opens the breaker now, restarting the recovery timeout.
func (cb *CircuitBreaker) ForceOpen() {
	cb.locked(func(now time.Time) {
		if cb.state == StateOpen {
			cb.armOpen(now)
			return
		}
		cb.transition(StateOpen, now)
	})
}

// ForceClose closes the breaker and zeroes its counters.
func (cb *CircuitBreaker) ForceClose() {
	cb.locked(func(now time.Time) {
		cb.transition(StateClosed, now)
		cb.resetCounters()
	})
}

// Reset returns the breaker to its freshly constructed state.
func (cb *CircuitBreaker) Reset() {
	cb.locked(func(now time.Time) {
		cb.transition(StateClosed, now)
		cb.resetCounters()
		cb.rejections = 0
		cb.lastFailure, cb.lastSuccess = time.Time{}, time.Time{}
		cb.uptime, cb.downtime = 0, 0
		cb.changedAt = now
	})
}

// guarded records a panicking operation as a failure before re-panicking.
func (cb *CircuitBreaker) guarded(ctx context.Context, op func(ctx context.Context) (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cb.Record(false, false)
			panic(r)
		}
	}()
	return cb.run(ctx, op)
}

func (cb *CircuitBreaker) run(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	if cb.cfg.Timeout <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, cb.cfg.Timeout)
	defer cancel()

	type result struct {
		value any
		err   error
		panic any
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{panic: r}
			}
		}()
		v, err := op(opCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.panic != nil {
			panic(r.panic)
		}
		if r.err != nil && opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &OperationTimeoutError{Name: cb.cfg.Name, Timeout: cb.cfg.Timeout}
		}
		return r.value, r.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &OperationTimeoutError{Name: cb.cfg.Name, Timeout: cb.cfg.Timeout}
	}
}

func (cb *CircuitBreaker) fallbackOr(ctx context.Context, err error) (any, error) {
	if cb.fallback == nil {
		return nil, err
	}
	return cb.fallback(ctx, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrOperationTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// locked runs fn under the lock and delivers the transitions it queued
// once the lock is released.
func (cb *CircuitBreaker) locked(fn func(now time.Time)) {
	cb.mu.Lock()
	fn(cb.now())
	changes := cb.pending
	cb.pending = nil
	cb.mu.Unlock()

	for _, c := range changes {
		cb.notify(c)
	}
}

func (cb *CircuitBreaker) notify(c StateChange) {
	fields := logger.Fields("from", c.From.String(), "to", c.To.String())
	if c.To == StateOpen {
		cb.log.Warn("circuit breaker opened", fields)
	} else {
		cb.log.Info("circuit breaker state changed", fields)
	}
	if cb.metrics != nil {
		cb.metrics.RecordBreakerTransition(context.Background(), c.Name, c.From.String(), c.To.String())
	}
	for _, h := range cb.hooks {
		h(c)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	if from == to {
		return
	}

	elapsed := now.Sub(cb.changedAt)
	if from == StateClosed {
		cb.uptime += elapsed
	} else {
		cb.downtime += elapsed
	}
	cb.state = to
	cb.changedAt = now

	switch to {
	case StateOpen:
		cb.armOpen(now)
	case StateHalfOpen:
		cb.disarm()
		cb.successes = 0
	case StateClosed:
		cb.disarm()
		cb.resetCounters()
	}
	cb.pending = append(cb.pending, StateChange{Name: cb.cfg.Name, From: from, To: to, At: now})
}

// armOpen records the opening time and starts the reset timer when one is
// configured. A newer opening invalidates older timers through openGen.
func (cb *CircuitBreaker) armOpen(now time.Time) {
	cb.openedAt = now
	cb.openGen++
	cb.disarm()
	if cb.cfg.ResetTimeout <= 0 {
		return
	}
	gen := cb.openGen
	cb.resetTimer = time.AfterFunc(cb.cfg.ResetTimeout, func() {
		cb.locked(func(now time.Time) {
			if cb.state == StateOpen && cb.openGen == gen {
				cb.transition(StateHalfOpen, now)
			}
		})
	})
}

func (cb *CircuitBreaker) disarm() {
	if cb.state != StateOpen {
		cb.openedAt = time.Time{}
	}
	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
}

func (cb *CircuitBreaker) resetCounters() {
	cb.failures, cb.successes, cb.timeouts, cb.totalRequests = 0, 0, 0, 0
	cb.window = cb.window[:0]
}

func (cb *CircuitBreaker) shouldTrip(now time.Time) bool {
	threshold := int64(cb.cfg.FailureThreshold)
	if cb.cfg.TripMode != TripSlidingWindow {
		return cb.failures+cb.timeouts >= threshold
	}

	cb.prune(now)
	if len(cb.window) == 0 {
		return false
	}
	var failed int64
	for _, o := range cb.window {
		if !o.success {
			failed++
		}
	}
	ratio := float64(failed) / float64(len(cb.window))
	return ratio >= cb.cfg.ExpectedErrorRate && failed >= threshold
}

func (cb *CircuitBreaker) observe(o outcome) {
	cb.window = append(cb.window, o)
	cb.prune(o.at)
}

// prune drops outcomes older than MonitoringPeriod and caps the window at
// WindowSize entries, oldest first.
func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.cfg.MonitoringPeriod)
	drop := 0
	for drop < len(cb.window) && cb.window[drop].at.Before(cutoff) {
		drop++
	}
	if over := len(cb.window) - drop - cb.cfg.WindowSize; over > 0 {
		drop += over
	}
	if drop > 0 {
		cb.window = append(cb.window[:0], cb.window[drop:]...)
	}
}

// stop cancels a pending reset timer.
func (cb *CircuitBreaker) stop() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
}
