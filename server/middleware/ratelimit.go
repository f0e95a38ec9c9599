package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meshkit/resilience"
)

// RateLimit rejects requests with 429 while the token bucket is empty. The
// Retry-After header carries the whole seconds until the next token.
func RateLimit(rl *resilience.RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow() {
				seconds := retryAfterSeconds(rl)
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeJSON(w, http.StatusTooManyRequests, rateLimitBody(seconds))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GinRateLimit is RateLimit for a gin engine.
func GinRateLimit(rl *resilience.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow() {
			seconds := retryAfterSeconds(rl)
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, rateLimitBody(seconds))
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(rl *resilience.RateLimiter) int {
	return max(1, int(math.Ceil(rl.RetryAfter().Seconds())))
}

func rateLimitBody(seconds int) map[string]any {
	return map[string]any{
		"error":      "Too Many Requests",
		"message":    resilience.ErrRateLimited.Error(),
		"retryAfter": seconds,
	}
}
