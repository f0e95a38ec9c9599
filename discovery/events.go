package discovery

import (
	"time"

	"github.com/kbukum/meshkit/logger"
)

// EventType names a registry notification.
type EventType string

const (
	EventRegistered      EventType = "registered"
	EventDeregistered    EventType = "deregistered"
	EventHealthChanged   EventType = "health_changed"
	EventInstanceExpired EventType = "instance_expired"
	EventCircuitOpened   EventType = "circuit_opened"
	EventCircuitHalfOpen EventType = "circuit_half_open"
	EventCircuitClosed   EventType = "circuit_closed"
)

// Event is delivered synchronously to subscribers after the registry lock
// has been released. InstanceID is empty when a whole service was removed.
type Event struct {
	Type       EventType
	Service    string
	InstanceID string
	// Instance is a copy of the instance as of the event.
	Instance *ServiceInstance
	// PreviousHealth is set for EventHealthChanged.
	PreviousHealth HealthStatus
	At             time.Time
}

// Subscribe registers fn for every event. The returned function removes it.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	r.subMu.RLock()
	subs := make([]func(Event), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	r.subMu.RUnlock()

	for _, ev := range events {
		r.log.Debug("registry event", logger.Fields(
			"event", string(ev.Type), logger.FieldService, ev.Service, logger.FieldInstanceID, ev.InstanceID))
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func instanceEvent(t EventType, inst *ServiceInstance, at time.Time) Event {
	cp := inst.clone()
	return Event{Type: t, Service: inst.Name, InstanceID: inst.ID, Instance: &cp, At: at}
}
