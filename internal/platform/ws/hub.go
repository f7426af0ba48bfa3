// Package ws pushes dashboard updates to browser clients over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/metrics"
)

// Message is the envelope every push uses.
type Message struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan registration
	unregister chan *Client
	done       chan struct{}
	count      int
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics counts connected clients.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithCheckOrigin overrides the upgrade origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan registration),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations and broadcasts until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case reg := <-h.register:
			client := reg.client
			// Snapshot inside the loop: no broadcast can land between the
			// initial state and the client joining.
			if reg.initial != nil {
				queueInitial(client, reg.initial())
			}
			h.mu.Lock()
			h.clients[client] = true
			h.count++
			h.mu.Unlock()
			h.metrics.ClientConnected(1)
			log.Printf("ws client %s registered (%s)", client.ID, client.conn.RemoteAddr())

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.removeLocked(client)
				log.Printf("ws client %s unregistered", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Printf("ws client %s send buffer full, removing", client.ID)
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count--
	h.metrics.ClientConnected(-1)
}

// Clients reports how many clients are registered.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish broadcasts one typed message to all clients. It never blocks on slow clients.
func (h *Hub) Publish(kind string, payload any) {
	data, err := json.Marshal(Message{Type: kind, Payload: payload, At: time.Now()})
	if err != nil {
		log.Printf("ws publish %s: %v", kind, err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		log.Printf("ws publish %s: broadcast queue full, dropping", kind)
	}
}

type registration struct {
	client  *Client
	initial func() []Message
}

func queueInitial(client *Client, initial []Message) {
	for _, m := range initial {
		data, err := json.Marshal(m)
		if err != nil {
			log.Printf("ws initial %s: %v", m.Type, err)
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// ServeWS upgrades the request and registers the client. initial, when set, is
// called as the client joins and its messages precede every later broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial func() []Message) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}
	client := &Client{ID: uuid.NewString(), hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- registration{client: client, initial: initial}:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
