package discovery

import (
	"fmt"
	"maps"
	"net"
	"strconv"
	"time"
)

// HealthStatus is the last known health of an instance.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// ServiceInstance is one addressable copy of a named service.
type ServiceInstance struct {
	ID       string       `json:"id" mapstructure:"id" validate:"required"`
	Name     string       `json:"name" mapstructure:"name" validate:"required"`
	Host     string       `json:"host" mapstructure:"host" validate:"required"`
	Port     int          `json:"port" mapstructure:"port" validate:"gte=1,lte=65535"`
	Protocol string       `json:"protocol" mapstructure:"protocol" validate:"omitempty,oneof=http https"`
	Health   HealthStatus `json:"health" mapstructure:"health" validate:"omitempty,oneof=healthy unhealthy unknown"`
	// Weight is the relative share under weighted balancing. Zero means 1.
	Weight   int               `json:"weight" mapstructure:"weight" validate:"gte=0"`
	Metadata map[string]string `json:"metadata,omitempty" mapstructure:"metadata"`

	RegisteredAt  time.Time `json:"registeredAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// URL is the base address of the instance, e.g. "http://10.0.0.1:8080".
func (i ServiceInstance) URL() string {
	return fmt.Sprintf("%s://%s", i.Protocol, net.JoinHostPort(i.Host, strconv.Itoa(i.Port)))
}

// Key identifies the instance across services, and names its breaker.
func (i ServiceInstance) Key() string {
	return i.Name + ":" + i.ID
}

func (i ServiceInstance) IsHealthy() bool {
	return i.Health == HealthHealthy
}

func (i *ServiceInstance) applyDefaults() {
	if i.Protocol == "" {
		i.Protocol = "http"
	}
	if i.Health == "" {
		i.Health = HealthHealthy
	}
	if i.Weight == 0 {
		i.Weight = 1
	}
}

func (i ServiceInstance) clone() ServiceInstance {
	i.Metadata = maps.Clone(i.Metadata)
	return i
}
