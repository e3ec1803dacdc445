package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Hub maintains the set of subscribers and broadcasts events to them.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

// New creates a hub. Call Run to start it.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "hub"),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			h.logger.Info("subscriber connected", "client", c.id, "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("subscriber disconnected", "client", c.id, "remaining", len(h.clients))
			}

		case data := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.drop(c)
					h.logger.Warn("dropped slow subscriber", "client", c.id)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Publish encodes and broadcasts one event. A full queue drops the event.
func (h *Hub) Publish(typ string, data any) error {
	ev, err := NewEvent(typ, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- raw:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "type", typ)
	}
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Handler returns the fiber websocket handler that subscribes a connection.
// onConnect, if set, sends the new client an initial snapshot.
func (h *Hub) Handler(onConnect func() (string, any)) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		c := newClient(h, conn)
		if onConnect != nil {
			typ, data := onConnect()
			if ev, err := NewEvent(typ, data); err == nil {
				if raw, err := json.Marshal(ev); err == nil {
					c.send <- raw
				}
			}
		}
		select {
		case h.register <- c:
		case <-h.done:
			return
		}
		c.run()
	})
}

// Upgrade rejects plain HTTP requests on websocket routes.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
