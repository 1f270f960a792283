package websocket

import (
	"github.com/ramonehamilton/mtg-commander/internal/events"
)

// WebSocketObserver forwards session events to WebSocket clients.
type WebSocketObserver struct {
	name string
	hub  *Hub
}

// NewWebSocketObserver creates a new observer that forwards events to WebSocket clients.
func NewWebSocketObserver(hub *Hub) *WebSocketObserver {
	return &WebSocketObserver{
		name: "WebSocketObserver",
		hub:  hub,
	}
}

// OnEvent forwards the event to all connected WebSocket clients.
// Events raised with nobody connected are dropped.
func (o *WebSocketObserver) OnEvent(event events.Event) error {
	if o.hub == nil || o.hub.ClientCount() == 0 {
		return nil
	}
	o.hub.BroadcastEvent(Event{Type: event.Type, Data: event.Data})
	return nil
}

// GetName returns the observer's name.
func (o *WebSocketObserver) GetName() string {
	return o.name
}

// ShouldHandle returns true for all events.
func (o *WebSocketObserver) ShouldHandle(string) bool {
	return true
}

var _ events.Observer = (*WebSocketObserver)(nil)
