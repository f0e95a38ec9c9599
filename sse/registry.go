package sse

import (
	"strings"
	"time"

	"github.com/kbukum/meshkit/discovery"
)

// RegistryEvent is the JSON payload of a "registry" frame.
type RegistryEvent struct {
	Type           discovery.EventType        `json:"type"`
	Service        string                     `json:"service"`
	InstanceID     string                     `json:"instanceId,omitempty"`
	Instance       *discovery.ServiceInstance `json:"instance,omitempty"`
	PreviousHealth discovery.HealthStatus     `json:"previousHealth,omitempty"`
	At             time.Time                  `json:"at"`
}

// ClientID names a stream. An empty service subscribes to every service.
func ClientID(service, unique string) string {
	if service == "" {
		return "all:" + unique
	}
	return "service:" + service + ":" + unique
}

// ForwardRegistryEvents returns a discovery subscriber that publishes each
// event to the streams watching all services and to those watching the
// event's service.
func ForwardRegistryEvents(b Broadcaster) func(discovery.Event) {
	return func(e discovery.Event) {
		payload := RegistryEvent{
			Type:           e.Type,
			Service:        e.Service,
			InstanceID:     e.InstanceID,
			Instance:       e.Instance,
			PreviousHealth: e.PreviousHealth,
			At:             e.At,
		}
		_ = b.Publish("all:*", EventRegistry, payload)
		_ = b.Publish("service:"+escapeGlob(e.Service)+":*", EventRegistry, payload)
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
