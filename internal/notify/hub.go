// Package notify pushes refresh notifications to WebSocket clients.
package notify

import (
	"encoding/json"
	"sync"

	appLog "calrecur/internal/log"
	"calrecur/internal/model"
)

// Message is one notification sent to every client.
type Message struct {
	Type string     `json:"type"`
	Run  *model.Run `json:"run,omitempty"`
}

// RefreshMessage announces a finished refresh run.
func RefreshMessage(run model.Run) Message {
	typ := "refresh_done"
	if !run.OK() {
		typ = "refresh_failed"
	}
	return Message{Type: typ, Run: &run}
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends msg to all connected clients. Clients whose buffer is full
// miss the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		appLog.Error("notify: marshal broadcast", err, "type", msg.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
