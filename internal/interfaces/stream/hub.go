package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// read-only clients behind the same origin policy as the REST API
	CheckOrigin: func(r *http.Request) bool { return true },
}

type event struct {
	Type   string        `json:"type"`
	Stocks []model.Stock `json:"stocks"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans committed batches out to websocket clients. A client that cannot
// keep up has its buffer overrun and is dropped; a broadcast never blocks.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Run blocks until ctx is cancelled, then closes every client connection.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		close(cl.send)
		delete(h.clients, cl)
	}
	return ctx.Err()
}

// PublishStocks implements port.Publisher.
func (h *Hub) PublishStocks(stocks []model.Stock) {
	b, err := json.Marshal(event{Type: "stocks", Stocks: stocks})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- b:
		default:
			// slow consumer: drop it rather than stall the broadcast
			close(cl.send)
			delete(h.clients, cl)
		}
	}
}

// Handle upgrades an HTTP request to a streaming connection.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		// drained: no registrations after Run swept the map
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go cl.writePump()
	go cl.readPump(h)
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		close(cl.send)
		delete(h.clients, cl)
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// notice closes and answer pings.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ port.Publisher = (*Hub)(nil)
