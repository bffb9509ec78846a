// Package bus is a typed in-process event bus replacing the broadcast
// notifications the mobile app used for cross-component signaling.
package bus

import (
	"sync"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
)

// EventType identifies a broadcast signal.
type EventType string

const (
	LoginCompleted  EventType = "login_completed"
	LogoutCompleted EventType = "logout_completed"
	CitySelected    EventType = "city_selected"
	UnitChanged     EventType = "unit_changed"
)

// Event carries a signal and its optional payload. Exactly one payload field
// is set, matching Type.
type Event struct {
	Type EventType
	City *models.CityCandidate
	Unit models.TemperatureUnit
}

const subscriberBuffer = 16

type subscriber struct {
	ch    chan Event
	types map[EventType]struct{} // nil means all types
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in the given event types (all types when none
// are given). The returned cancel func unregisters and closes the channel;
// call it exactly once.
func (b *Bus) Subscribe(types ...EventType) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers e to every interested subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[e.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- e:
		default:
			observability.BusEventsDroppedTotal.WithLabelValues(string(e.Type)).Inc()
		}
	}
}
