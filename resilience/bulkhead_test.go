package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_BoundsConcurrency(t *testing.T) {
	bh := NewBulkhead(BulkheadConfig{Name: "bulk", MaxConcurrent: 3, MaxWait: WaitForSlot})

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bh.Execute(context.Background(), func(ctx context.Context) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds 3", peak.Load())
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	var rejected string
	bh := NewBulkhead(BulkheadConfig{Name: "full", MaxConcurrent: 1, OnReject: func(name string) { rejected = name }})

	hold := make(chan struct{})
	started := make(chan struct{})
	go bh.Execute(context.Background(), func(ctx context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started
	defer close(hold)

	err := bh.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if rejected != "full" {
		t.Errorf("OnReject not called, got %q", rejected)
	}
	if bh.InUse() != 1 || bh.Available() != 0 || bh.MaxConcurrent() != 1 {
		t.Errorf("unexpected slots in_use=%d available=%d", bh.InUse(), bh.Available())
	}
}

func TestBulkhead_TimesOutWaiting(t *testing.T) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	hold := make(chan struct{})
	started := make(chan struct{})
	go bh.Execute(context.Background(), func(ctx context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started
	defer close(hold)

	if err := bh.Execute(context.Background(), func(ctx context.Context) error { return nil }); !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("expected ErrBulkheadTimeout, got %v", err)
	}
}

func TestBulkhead_WaitRespectsContext(t *testing.T) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: WaitForSlot})
	hold := make(chan struct{})
	started := make(chan struct{})
	go bh.Execute(context.Background(), func(ctx context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := bh.Execute(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline, got %v", err)
	}
}

func TestRetry_ExecuteWithResult(t *testing.T) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	got, err := ExecuteWithResult(context.Background(), bh, func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("got %d %v", got, err)
	}
	if bh.InUse() != 0 {
		t.Error("slot not released")
	}
}
