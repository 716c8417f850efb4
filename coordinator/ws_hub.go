package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bashar404/poet/coordinator/observability"
)

const (
	maxWSConnections = 200
	wsWriteTimeout   = 5 * time.Second
	hubBufferSize    = 256
)

// wsEvent is what event-stream clients receive.
type wsEvent struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// EventHub manages WebSocket subscribers and broadcasts scheduling
// events to them. A single broadcaster goroutine serves all clients.
type EventHub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan wsEvent
	mu         sync.RWMutex
}

// NewEventHub creates the hub; Run must be started for it to do work.
func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan wsEvent, hubBufferSize),
	}
}

// Run is the hub main loop.
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxWSConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("[WS] connection rejected: max connections (%d) reached", maxWSConnections)
				continue
			}
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			observability.WSClients.Set(float64(total))
			log.Printf("[WS] client registered, total: %d", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			observability.WSClients.Set(float64(total))

		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

// Broadcast queues an event for delivery. The hub never blocks the
// scheduler: when the buffer is full the event is dropped.
func (h *EventHub) Broadcast(topic string, payload interface{}) {
	select {
	case h.events <- wsEvent{Topic: topic, Payload: payload}:
	default:
		observability.EventPublishFailures.WithLabelValues(topic).Inc()
	}
}

func (h *EventHub) broadcast(ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[WS] write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *EventHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	log.Printf("[WS] shutting down hub with %d clients", len(h.clients))
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

// Register adds a subscriber.
func (h *EventHub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes a subscriber.
func (h *EventHub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount returns the number of subscribers.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
