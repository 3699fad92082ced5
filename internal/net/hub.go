package net

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub manages the websocket connections of preview clients and pushes
// them the current view whenever the session changes. gorilla
// connections allow at most one concurrent writer, so every write goes
// through a per-connection lock.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]*sync.Mutex
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]*sync.Mutex)}
}

// Add registers a client connection.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = &sync.Mutex{}
	log.Printf("[hub] client connected from %s", conn.RemoteAddr())
}

// Remove drops a client connection and closes it.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
		log.Printf("[hub] client disconnected from %s", conn.RemoteAddr())
	}
}

// Send writes data to one client, serialized against every other
// writer on the same connection. Sending to a connection that was
// already removed is a no-op.
func (h *Hub) Send(conn *websocket.Conn, data []byte) error {
	h.mu.RLock()
	wmu, ok := h.conns[conn]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	wmu.Lock()
	defer wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast sends data to every connected client. Clients that fail to
// receive are dropped.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := h.Send(c, data); err != nil {
			log.Printf("[hub] send to %s: %v", c.RemoteAddr(), err)
			h.Remove(c)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
