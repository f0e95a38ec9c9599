package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/meshkit/errors"
	"github.com/kbukum/meshkit/httpclient"
)

// StatsSource is implemented by *httpclient.Resilient.
type StatsSource interface {
	ServiceStats(service string) httpclient.ServiceStats
	PerformanceReport() httpclient.PerformanceReport
}

// Metrics reports runtime memory and goroutine metrics.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       m.Alloc / 1024 / 1024,
				"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
				"sys_mb":         m.Sys / 1024 / 1024,
				"gc_runs":        m.NumGC,
			},
		})
	}
}

// Performance reports the slowest and most error-prone services seen by the
// client.
func Performance(s StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.PerformanceReport())
	}
}

// ServiceStats reports request statistics for the :name path parameter. A
// service with no recorded requests answers 404.
func ServiceStats(s StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		stats := s.ServiceStats(name)
		if stats.Count == 0 {
			respondError(c, apperrors.NotFound("service metrics", name))
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
