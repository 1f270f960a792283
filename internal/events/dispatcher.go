// Package events distributes session state changes to observers such as the
// presentation bridge or a debug logger.
package events

import (
	"log"
	"sync"
)

// Event represents a session event that can be dispatched to observers.
type Event struct {
	// Type is the event type (e.g., "deck:updated", "search:settled")
	Type string

	// Data is the typed payload; see messages.go.
	Data any
}

// Observer defines the interface for objects that want to be notified of events.
type Observer interface {
	// OnEvent is called when an event is dispatched.
	OnEvent(event Event) error

	// GetName returns a human-readable name for this observer (for logging/debugging).
	GetName() string

	// ShouldHandle returns true if this observer should handle the given event type.
	ShouldHandle(eventType string) bool
}

// EventDispatcher implements the Observer pattern for event distribution.
// Thread-safe for concurrent use.
type EventDispatcher struct {
	observers []Observer
	mu        sync.RWMutex
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		observers: make([]Observer, 0),
	}
}

// Register adds an observer to the dispatcher.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, observer)
	log.Printf("[EventDispatcher] Registered observer: %s", observer.GetName())
}

// Unregister removes an observer from the dispatcher.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, obs := range d.observers {
		if obs == observer {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			log.Printf("[EventDispatcher] Unregistered observer: %s", observer.GetName())
			return
		}
	}
}

// Dispatch sends an event to all registered observers, in registration order.
// An observer error is logged and dispatch continues.
func (d *EventDispatcher) Dispatch(event Event) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, observer := range observers {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			log.Printf("[EventDispatcher] Observer %s failed to handle event %s: %v",
				observer.GetName(), event.Type, err)
		}
	}
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// Typed extracts a typed payload from an Event.
func Typed[T any](event Event) (T, bool) {
	typed, ok := event.Data.(T)
	return typed, ok
}
