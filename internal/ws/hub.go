package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event is a state change pushed to a desk session's browser tab.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals v as the payload of a typed event.
func NewEvent(eventType string, v any) (Event, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: b}, nil
}

type sessionEvent struct {
	SessionID uuid.UUID
	Event     Event
}

// Hub fans events out to the WebSocket clients of each desk session.
type Hub struct {
	// Connected clients by desk session id
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	closeRoom  chan uuid.UUID
	broadcast  chan *sessionEvent
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		closeRoom:  make(chan uuid.UUID),
		broadcast:  make(chan *sessionEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done. On return
// every client's send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, clients := range h.rooms {
			for c := range clients {
				close(c.send)
			}
			delete(h.rooms, id)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.sessionID] == nil {
				h.rooms[client.sessionID] = make(map[*Client]bool)
			}
			h.rooms[client.sessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case id := <-h.closeRoom:
			h.mu.Lock()
			for c := range h.rooms[id] {
				close(c.send)
			}
			delete(h.rooms, id)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.SessionID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer; it reconnects and resyncs from GET /orders.
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(c *Client) {
	clients, ok := h.rooms[c.sessionID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.sessionID)
	}
}

// BroadcastToSession sends an event to every client of a desk session.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &sessionEvent{SessionID: sessionID, Event: event}:
	case <-h.done:
	}
}

// CloseSession disconnects every client of a desk session.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	select {
	case h.closeRoom <- sessionID:
	case <-h.done:
	}
}

// Clients returns the number of clients connected to a session.
func (h *Hub) Clients(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
