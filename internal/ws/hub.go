// Package ws fans change-feed events out to connected websocket clients.
// Every mutation in the service produces one event carrying the full
// recomputed view, so clients never need to poll or reconcile deltas.
package ws

import (
	"context"

	"go.uber.org/zap"
)

// Hub tracks connected clients and broadcasts events to all of them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	logger *zap.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// onCount is called with the client count after every change, for
	// the connection gauge. May be nil.
	onCount func(int)
}

// NewHub creates a hub. onCount may be nil.
func NewHub(logger *zap.Logger, onCount func(int)) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		onCount:    onCount,
	}
}

// Run owns the client set until the context is cancelled. On shutdown
// every client's send channel is closed, which ends its write pump.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.notifyCount()
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.notifyCount()
			h.logger.Debug("Client connected",
				zap.String("remote", c.remote),
				zap.Int("clients", len(h.clients)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.notifyCount()
				h.logger.Debug("Client disconnected",
					zap.String("remote", c.remote),
					zap.Int("clients", len(h.clients)),
				)
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer; drop it rather than block the feed.
					delete(h.clients, c)
					close(c.send)
					h.notifyCount()
					h.logger.Warn("Dropping slow client",
						zap.String("remote", c.remote),
					)
				}
			}
		}
	}
}

// OnCount replaces the client-count callback. Must be called before
// Run starts.
func (h *Hub) OnCount(fn func(int)) {
	h.onCount = fn
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

func (h *Hub) notifyCount() {
	if h.onCount != nil {
		h.onCount(len(h.clients))
	}
}
