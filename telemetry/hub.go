// Package telemetry broadcasts live scanner status to websocket clients and,
// optionally, republishes the same updates to a NATS subject (§4.12).
package telemetry

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Update is one broadcast snapshot of scanner state.
type Update struct {
	State        string    `json:"state"`
	FrequencyHz  float64   `json:"frequencyHz"`
	Bookmark     string    `json:"bookmark,omitempty"`
	PeakDB       float64   `json:"peakDb"`
	NoiseFloorDB float64   `json:"noiseFloorDb"`
	Timestamp    time.Time `json:"timestamp"`
}

// Hub fans out Updates to every connected websocket client. It runs its own
// goroutine (Run) and is safe to call from the scan loop's tick.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Update
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Update, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run services registration and broadcast until ctx-like stop is requested
// by closing done. It blocks; call it in its own goroutine.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
			}
			h.clients = map[*websocket.Conn]bool{}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
		case u := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := c.WriteJSON(u); err != nil {
					log.Printf("telemetry: write: %v", err)
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish enqueues u for broadcast. It never blocks: with no subscribers,
// or a full buffer, the update is dropped.
func (h *Hub) Publish(u Update) {
	select {
	case h.broadcast <- u:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket connection and registers
// it with the hub. cmd/scanner mounts it at /ws on the server listening
// at the configured telemetry.listen address.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("telemetry: upgrade: %v", err)
		return
	}
	h.register <- conn
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister <- conn
				return
			}
		}
	}()
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
