// Package livefeed streams grievance events to connected admin dashboards over WebSocket.
package livefeed

import (
	"context"
	"errors"

	"grievance/backend/internal/models"

	"go.uber.org/zap"
)

// ErrHubStopped is returned once Run has exited.
var ErrHubStopped = errors.New("livefeed: hub stopped")

// Publisher accepts feed events. Implemented by Hub and RedisBridge.
type Publisher interface {
	Publish(ctx context.Context, ev models.FeedEvent) error
}

// Hub є головним диспетчером: реєструє клієнтів і розсилає їм події.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.FeedEvent
	done       chan struct{}
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.FeedEvent, 256),
		done:       make(chan struct{}),
		log:        log.With(zap.String("component", "livefeed")),
	}
}

// Run serves the hub until ctx is cancelled, then closes every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("Client registered", zap.String("department", c.department))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case ev := <-h.broadcast:
			for c := range h.clients {
				if c.department != "" && c.department != ev.Department {
					continue
				}
				select {
				case c.send <- ev:
				default:
					// Повільний клієнт, відключаємо
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Register adds c to the hub.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes c. It never blocks after the hub has stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish enqueues ev for broadcast. A full queue drops the event.
func (h *Hub) Publish(ctx context.Context, ev models.FeedEvent) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.log.Warn("Broadcast queue full, dropping event", zap.String("grievance_id", ev.GrievanceID))
		return nil
	}
}
