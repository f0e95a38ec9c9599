package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meshkit/resilience"
)

// BreakerReporter is implemented by *resilience.Registry.
type BreakerReporter interface {
	HealthReport() resilience.HealthReport
}

// Breakers lists every circuit breaker with its state and counters.
func Breakers(r BreakerReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, r.HealthReport())
	}
}
