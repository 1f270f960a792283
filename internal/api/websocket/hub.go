// Package websocket pushes session events to connected presentation clients.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound queue per client; a client this far behind is dropped.
	sendBuffer = 256
)

// StateEvent is the type of the greeting each client receives on connect.
const StateEvent = "session:state"

// Event represents a WebSocket event to be broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client represents a WebSocket client connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	upgrader websocket.Upgrader

	// greeting, when set, produces the first message of every connection.
	greeting func() interface{}

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once
	stopped  bool

	mu sync.RWMutex
}

// NewHub creates a hub accepting connections from origins. "*" or an empty
// list accepts any origin.
func NewHub(origins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		return origin == "" || slices.Contains(origins, origin)
	}
}

// SetGreeting registers fn to build the state sent to each new client.
// Call before Run.
func (h *Hub) SetGreeting(fn func() interface{}) {
	h.greeting = fn
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Println("[WebSocket] Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.greet(client)
			log.Printf("[WebSocket] Client %s connected. Total clients: %d", client.id, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WebSocket] Client %s disconnected. Total clients: %d", client.id, count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Printf("[WebSocket] Dropping slow client %s", client.id)
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// greet queues the greeting for a freshly registered client. Runs on the hub
// goroutine, so nothing has been sent to the client yet.
func (h *Hub) greet(client *Client) {
	if h.greeting == nil {
		return
	}
	data, err := json.Marshal(Event{Type: StateEvent, Data: h.greeting()})
	if err != nil {
		log.Printf("[WebSocket] Error marshaling greeting: %v", err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// BroadcastEvent broadcasts an event to all connected clients.
// Returns false if the hub has been stopped.
func (h *Hub) BroadcastEvent(event Event) bool {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()

	if stopped {
		return false
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WebSocket] Error marshaling event %s: %v", event.Type, err)
		return false
	}

	select {
	case h.broadcast <- data:
		return true
	case <-h.done:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop gracefully stops the hub and cleans up all client connections.
// Safe to call multiple times - subsequent calls are no-ops.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// IsStopped returns true if the hub has been stopped.
func (h *Hub) IsStopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// ServeWs handles WebSocket requests from clients.
// Returns immediately if the hub has been stopped.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	if h.IsStopped() {
		http.Error(w, "WebSocket hub is not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade error: %v", err)
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
		go client.writePump()
		go client.readPump()
	case <-h.done:
		if err := conn.Close(); err != nil {
			log.Printf("[WebSocket] Close error: %v", err)
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Clients do not send intents over the socket; those go through REST.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil {
			log.Printf("[WebSocket] Close error: %v", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[WebSocket] SetReadDeadline error: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error: %v", err)
			}
			return
		}
	}
}

// writePump sends queued events, one event per frame, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Printf("[WebSocket] Close error: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("[WebSocket] SetWriteDeadline error: %v", err)
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Write error: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("[WebSocket] SetWriteDeadline error: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
