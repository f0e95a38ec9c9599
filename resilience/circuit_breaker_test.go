package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/meshkit/errors"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func fail(ctx context.Context) (any, error)    { return nil, errBoom }
func succeed(ctx context.Context) (any, error) { return "ok", nil }

func newTestBreaker(cfg Config, clock *fakeClock, opts ...BreakerOption) *CircuitBreaker {
	return NewCircuitBreaker(cfg, append([]BreakerOption{WithClock(clock.Now)}, opts...)...)
}

func TestCircuitBreaker_StartsClosedWithDefaults(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "billing"})
	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", cb.State())
	}
	cfg := cb.Config()
	if cfg.FailureThreshold != 5 || cfg.SuccessThreshold != 1 || cfg.RecoveryTimeout != time.Minute ||
		cfg.MonitoringPeriod != time.Minute || cfg.TripMode != TripThreshold || cfg.WindowSize != 1000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestCircuitBreaker_InvalidConfigPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative threshold")
		}
	}()
	NewCircuitBreaker(Config{Name: "bad", FailureThreshold: -1})
}

func TestCircuitBreaker_OpensAfterThresholdFailures(t *testing.T) {
	for _, threshold := range []int{1, 3, 5} {
		clock := newFakeClock()
		cb := newTestBreaker(Config{Name: "svc", FailureThreshold: threshold}, clock)

		for i := 0; i < threshold-1; i++ {
			cb.Execute(context.Background(), fail)
			if cb.State() != StateClosed {
				t.Fatalf("threshold %d: opened early after %d failures", threshold, i+1)
			}
		}
		cb.Execute(context.Background(), fail)
		if cb.State() != StateOpen {
			t.Errorf("threshold %d: expected OPEN, got %s", threshold, cb.State())
		}
	}
}

func TestCircuitBreaker_OpenRejectsWithoutCallingOperation(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "svc", FailureThreshold: 1, RecoveryTimeout: 10 * time.Second}, clock)
	cb.Execute(context.Background(), fail)

	var calls int
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		_, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) {
			calls++
			return nil, nil
		})
		var openErr *CircuitOpenError
		if !errors.As(err, &openErr) || !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected CircuitOpenError, got %v", err)
		}
		if want := 10*time.Second - time.Duration(i+1)*time.Second; openErr.RetryAfter != want {
			t.Errorf("RetryAfter = %s, want %s", openErr.RetryAfter, want)
		}
	}
	if calls != 0 {
		t.Errorf("operation invoked %d times while OPEN", calls)
	}
	if got := cb.Metrics().Rejections; got != 5 {
		t.Errorf("Rejections = %d, want 5", got)
	}
}

func TestCircuitBreaker_RejectingHasNoSideEffects(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "svc", RecoveryTimeout: 10 * time.Second}, clock)
	if cb.Rejecting() {
		t.Fatal("closed breaker reported rejecting")
	}

	cb.ForceOpen()
	if !cb.Rejecting() {
		t.Fatal("open breaker inside recovery timeout must reject")
	}
	clock.Advance(10 * time.Second)
	if cb.Rejecting() {
		t.Fatal("breaker past recovery timeout must admit a probe")
	}
	if cb.State() != StateOpen || cb.Metrics().Rejections != 0 {
		t.Fatalf("Rejecting changed state: %s, rejections %d", cb.State(), cb.Metrics().Rejections)
	}
}

func TestCircuitBreaker_HalfOpenThenClosedResetsCounters(t *testing.T) {
	clock := newFakeClock()
	var changes []StateChange
	cb := newTestBreaker(Config{Name: "svc", FailureThreshold: 2, SuccessThreshold: 2, RecoveryTimeout: 5 * time.Second}, clock,
		WithStateChangeHook(func(c StateChange) { changes = append(changes, c) }))

	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), fail)
	clock.Advance(5 * time.Second)

	var stateDuringProbe State
	cb.Execute(context.Background(), func(ctx context.Context) (any, error) {
		stateDuringProbe = cb.State()
		return nil, nil
	})
	if stateDuringProbe != StateHalfOpen {
		t.Errorf("expected HALF_OPEN before the probe runs, got %s", stateDuringProbe)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("one success must not close with SuccessThreshold=2, got %s", cb.State())
	}

	cb.Execute(context.Background(), succeed)
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED, got %s", cb.State())
	}

	m := cb.Metrics()
	if m.Failures != 0 || m.Successes != 0 || m.Timeouts != 0 || m.TotalRequests != 0 {
		t.Errorf("counters not reset: %+v", m)
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(changes) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), changes)
	}
	for i, c := range changes {
		if c.To != want[i] || c.Name != "svc" {
			t.Errorf("transition %d = %+v, want to %s", i, c, want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "svc", FailureThreshold: 1, RecoveryTimeout: time.Second}, clock)
	cb.Execute(context.Background(), fail)
	clock.Advance(time.Second)

	cb.Execute(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after a failed probe, got %s", cb.State())
	}
	if _, err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("recovery timeout must restart on re-open, got %v", err)
	}
}

// Three failures open a breaker with threshold 3; the fourth call is
// rejected; after the recovery timeout one success closes it.
func TestCircuitBreaker_EndToEndRecovery(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "billing", FailureThreshold: 3, RecoveryTimeout: 100 * time.Millisecond})

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(context.Background(), fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected operation error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", cb.State())
	}
	if _, err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}

	time.Sleep(120 * time.Millisecond)
	out, err := cb.Execute(context.Background(), succeed)
	if err != nil || out != "ok" {
		t.Fatalf("expected success, got %v %v", out, err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_TimeoutCountsSeparately(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "slow", FailureThreshold: 2, Timeout: 20 * time.Millisecond}, clock)

	release := make(chan struct{})
	defer close(release)
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) {
		select {
		case <-release:
		case <-time.After(time.Second):
		}
		return nil, nil
	})
	if !errors.Is(err, ErrOperationTimeout) {
		t.Fatalf("expected ErrOperationTimeout, got %v", err)
	}
	if appErr := apperrors.From(err); appErr.Code != apperrors.ErrCodeRequestTimeout {
		t.Errorf("expected REQUEST_TIMEOUT translation, got %s", appErr.Code)
	}

	cb.Execute(context.Background(), fail)
	m := cb.Metrics()
	if m.Timeouts != 1 || m.Failures != 1 {
		t.Errorf("expected 1 timeout and 1 failure, got %+v", m)
	}
	if cb.State() != StateOpen {
		t.Errorf("timeouts count toward the threshold, got %s", cb.State())
	}
}

func TestCircuitBreaker_ContextAwareOperationTimesOut(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "ctx", Timeout: 10 * time.Millisecond})
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, ErrOperationTimeout) {
		t.Errorf("expected ErrOperationTimeout, got %v", err)
	}
}

func TestCircuitBreaker_CallerCancellationNotRecorded(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "svc", FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func(ctx context.Context) (any, error) { return nil, ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != StateClosed || cb.Metrics().TotalRequests != 0 {
		t.Errorf("cancellation must not be recorded: %+v", cb.Metrics())
	}
}

func TestCircuitBreaker_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{
		Name:              "window",
		FailureThreshold:  3,
		ExpectedErrorRate: 0.5,
		TripMode:          TripSlidingWindow,
		MonitoringPeriod:  10 * time.Second,
	}, clock)

	// 3 failures among 7 calls: ratio below 0.5.
	for i := 0; i < 4; i++ {
		cb.Execute(context.Background(), succeed)
	}
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), fail)
	}
	if cb.State() != StateClosed {
		t.Fatalf("ratio 3/7 must not trip, got %s", cb.State())
	}

	// Old successes leave the window; the next failure makes 4/4.
	clock.Advance(11 * time.Second)
	for i := 0; i < 2; i++ {
		cb.Execute(context.Background(), fail)
	}
	if cb.State() != StateClosed {
		t.Fatalf("2 recent failures are below the threshold, got %s", cb.State())
	}
	cb.Execute(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Errorf("expected OPEN with 3/3 recent failures, got %s", cb.State())
	}
}

func TestCircuitBreaker_WindowIsCapped(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "cap", WindowSize: 4, TripMode: TripSlidingWindow, FailureThreshold: 100}, clock)
	for i := 0; i < 10; i++ {
		cb.Execute(context.Background(), succeed)
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(cb.window) != 4 {
		t.Errorf("window length = %d, want 4", len(cb.window))
	}
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	clock := newFakeClock()
	var seen []error
	cb := newTestBreaker(Config{Name: "svc", FailureThreshold: 1}, clock,
		WithFallback(func(ctx context.Context, err error) (any, error) {
			seen = append(seen, err)
			return "cached", nil
		}))

	out, err := cb.Execute(context.Background(), fail)
	if err != nil || out != "cached" {
		t.Fatalf("expected fallback result, got %v %v", out, err)
	}
	out, err = cb.Execute(context.Background(), succeed)
	if err != nil || out != "cached" {
		t.Fatalf("expected fallback for rejection, got %v %v", out, err)
	}
	if len(seen) != 2 || !errors.Is(seen[0], errBoom) || !errors.Is(seen[1], ErrCircuitOpen) {
		t.Errorf("unexpected fallback inputs %v", seen)
	}
}

func TestCircuitBreaker_ForceAndReset(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "svc", RecoveryTimeout: time.Minute}, clock)

	cb.ForceOpen()
	if _, err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection after ForceOpen, got %v", err)
	}
	cb.ForceClose()
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after ForceClose")
	}
	cb.Execute(context.Background(), fail)
	cb.Reset()
	m := cb.Metrics()
	if m.State != StateClosed || m.Failures != 0 || m.Rejections != 0 || !m.LastFailureTime.IsZero() {
		t.Errorf("Reset left state behind: %+v", m)
	}
}

func TestCircuitBreaker_ResetTimeoutForcesHalfOpen(t *testing.T) {
	changed := make(chan StateChange, 4)
	cb := NewCircuitBreaker(Config{Name: "svc", FailureThreshold: 1, RecoveryTimeout: time.Hour, ResetTimeout: 20 * time.Millisecond},
		WithStateChangeHook(func(c StateChange) { changed <- c }))
	cb.Execute(context.Background(), fail)

	deadline := time.After(time.Second)
	for {
		select {
		case c := <-changed:
			if c.To == StateHalfOpen {
				return
			}
		case <-deadline:
			t.Fatalf("reset timer did not move the breaker to HALF_OPEN, state %s", cb.State())
		}
	}
}

func TestCircuitBreaker_UptimeDowntime(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "svc", FailureThreshold: 1, RecoveryTimeout: time.Hour}, clock)

	clock.Advance(3 * time.Second)
	cb.Execute(context.Background(), fail)
	clock.Advance(2 * time.Second)

	m := cb.Metrics()
	if m.Uptime != 3*time.Second || m.Downtime != 2*time.Second {
		t.Errorf("uptime=%s downtime=%s", m.Uptime, m.Downtime)
	}
	if m.ErrorRate != 1 {
		t.Errorf("ErrorRate = %v, want 1", m.ErrorRate)
	}
}

func TestCircuitBreaker_Health(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(Config{Name: "svc", FailureThreshold: 1}, clock)
	if h := cb.Health(); !h.Healthy || h.State != StateClosed {
		t.Errorf("unexpected health %+v", h)
	}
	cb.Execute(context.Background(), fail)
	h := cb.Health()
	if h.Healthy || h.State != StateOpen || len(h.Recommendations) == 0 {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestCircuitBreaker_PanicRecordedAsFailure(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "svc", FailureThreshold: 1})
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		cb.Execute(context.Background(), func(ctx context.Context) (any, error) { panic("bad") })
	}()
	if cb.State() != StateOpen {
		t.Errorf("panic must count as failure, got %s", cb.State())
	}
}

type recorder struct {
	transitions, rejections atomic.Int32
}

func (r *recorder) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	r.transitions.Add(1)
}
func (r *recorder) RecordBreakerRejection(ctx context.Context, name string) { r.rejections.Add(1) }

func TestCircuitBreaker_MetricsRecorder(t *testing.T) {
	rec := &recorder{}
	cb := NewCircuitBreaker(Config{Name: "svc", FailureThreshold: 1}, WithMetrics(rec))
	cb.Execute(context.Background(), fail)
	cb.Execute(context.Background(), succeed)
	if rec.transitions.Load() != 1 || rec.rejections.Load() != 1 {
		t.Errorf("transitions=%d rejections=%d", rec.transitions.Load(), rec.rejections.Load())
	}
}

func TestRun_Typed(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "typed"})
	n, err := Run(context.Background(), cb, func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Fatalf("got %d %v", n, err)
	}

	cb2 := NewCircuitBreaker(Config{Name: "typed"}, WithFallback(func(ctx context.Context, err error) (any, error) {
		return "wrong type", nil
	}))
	if _, err := Run(context.Background(), cb2, func(ctx context.Context) (int, error) { return 0, errBoom }); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "race", FailureThreshold: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				cb.Execute(context.Background(), succeed)
			} else {
				cb.Execute(context.Background(), fail)
			}
			cb.Metrics()
		}(i)
	}
	wg.Wait()
	if got := cb.Metrics().TotalRequests; got != 50 {
		t.Errorf("TotalRequests = %d, want 50", got)
	}
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{StateClosed, StateOpen, StateHalfOpen} {
		text, _ := s.MarshalText()
		var back State
		if err := back.UnmarshalText(text); err != nil || back != s {
			t.Errorf("round trip of %s failed: %v", s, err)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("sideways")); err == nil {
		t.Error("expected error for unknown state")
	}
}
