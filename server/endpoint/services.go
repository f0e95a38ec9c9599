package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meshkit/discovery"
)

// ServiceLister is implemented by *discovery.Registry.
type ServiceLister interface {
	Snapshot() []discovery.ServiceSnapshot
}

// Services lists registered services with per-instance metrics and breaker
// state.
func Services(l ServiceLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		services := l.Snapshot()
		instances := 0
		for _, s := range services {
			instances += len(s.Instances)
		}
		c.JSON(http.StatusOK, gin.H{
			"services":       services,
			"totalServices":  len(services),
			"totalInstances": instances,
		})
	}
}
