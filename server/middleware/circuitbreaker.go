package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meshkit/resilience"
)

// CircuitOpenResponse is the 503 body sent while a breaker is open.
type CircuitOpenResponse struct {
	Error              string `json:"error"`
	Message            string `json:"message"`
	CircuitBreakerName string `json:"circuitBreakerName"`
	// RetryAfter is the breaker's recovery timeout in whole seconds, rounded up.
	RetryAfter int `json:"retryAfter"`
	Fallback   any `json:"fallback,omitempty"`
}

func openResponse(cb *resilience.CircuitBreaker) CircuitOpenResponse {
	return CircuitOpenResponse{
		Error:              "Service Unavailable",
		Message:            fmt.Sprintf("Circuit breaker %s is open", cb.Name()),
		CircuitBreakerName: cb.Name(),
		RetryAfter:         int(math.Ceil(cb.Config().RecoveryTimeout.Seconds())),
	}
}

// CircuitBreaker guards a handler with cb. While cb is open the handler is
// not called and the client gets a 503 with a Retry-After header. Otherwise
// responses below 500 count as successes and the rest as failures; a panic is
// recorded as a failure and re-raised.
func CircuitBreaker(cb *resilience.CircuitBreaker) Middleware {
	return CompositeCircuitBreaker([]*resilience.CircuitBreaker{cb}, nil)
}

// CompositeCircuitBreaker guards a handler with several breakers. When any of
// them is open the request is rejected with 503 and the fallback registered
// under the name of the first open breaker, if any, is included in the body.
// Every breaker records the outcome of a forwarded request.
func CompositeCircuitBreaker(breakers []*resilience.CircuitBreaker, fallbacks map[string]any) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open := firstOpen(breakers); open != nil {
				body := openResponse(open)
				body.Fallback = fallbackFor(open, breakers, fallbacks)
				w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
				writeJSON(w, http.StatusServiceUnavailable, body)
				return
			}

			sw := newStatusWriter(w)
			defer func() {
				if rec := recover(); rec != nil {
					recordAll(breakers, false)
					panic(rec)
				}
			}()
			next.ServeHTTP(sw, r)
			recordAll(breakers, sw.status < http.StatusInternalServerError)
		})
	}
}

// GinCircuitBreaker is CircuitBreaker for a gin route or group.
func GinCircuitBreaker(cb *resilience.CircuitBreaker) gin.HandlerFunc {
	breakers := []*resilience.CircuitBreaker{cb}
	return func(c *gin.Context) {
		if cb.Allow() != nil {
			body := openResponse(cb)
			c.Header("Retry-After", strconv.Itoa(body.RetryAfter))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, body)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				recordAll(breakers, false)
				panic(rec)
			}
		}()
		c.Next()
		recordAll(breakers, c.Writer.Status() < http.StatusInternalServerError)
	}
}

// firstOpen returns the first breaker rejecting the request. Breakers are
// only moved to HALF_OPEN once none of them rejects, so a rejected request
// never leaves a probe without an outcome.
func firstOpen(breakers []*resilience.CircuitBreaker) *resilience.CircuitBreaker {
	for _, cb := range breakers {
		if cb.Rejecting() && cb.Allow() != nil {
			return cb
		}
	}
	for _, cb := range breakers {
		if cb.Allow() != nil {
			return cb
		}
	}
	return nil
}

// fallbackFor prefers the fallback of the open breaker, then the first one
// registered in breaker order.
func fallbackFor(open *resilience.CircuitBreaker, breakers []*resilience.CircuitBreaker, fallbacks map[string]any) any {
	if fb, ok := fallbacks[open.Name()]; ok {
		return fb
	}
	for _, cb := range breakers {
		if fb, ok := fallbacks[cb.Name()]; ok {
			return fb
		}
	}
	return nil
}

func recordAll(breakers []*resilience.CircuitBreaker, success bool) {
	for _, cb := range breakers {
		cb.Record(success, false)
	}
}
