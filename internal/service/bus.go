package service

import "sync"

// Event is a change to a review resource.
type Event struct {
	Resource string // "sessions", "features"
	Action   string // "session", "mark", "translate", "imported"
	ID       string // resource ID
}

// EventBus is a fan-out pub/sub for resource change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]func(Event) bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]func(Event) bool)}
}

// Publish sends an event to all matching subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, match := range b.subs {
		if match != nil && !match(e) {
			continue
		}
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives every event.
func (b *EventBus) Subscribe() chan Event {
	return b.SubscribeFunc(nil)
}

// SubscribeFunc returns a buffered channel that receives the events match
// accepts.
func (b *EventBus) SubscribeFunc(match func(Event) bool) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = match
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
