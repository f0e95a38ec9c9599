package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/meshkit/component"
)

// THelper binds component helpers to a test.
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps t.
//
//	testutil.T(t).Setup(comp) // stopped when the test ends
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Setup starts c and stops it during test cleanup.
func (h *THelper) Setup(c component.Component) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		if err := c.Stop(context.Background()); err != nil {
			h.t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// Eventually polls cond every 5ms until it holds or timeout passes.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
