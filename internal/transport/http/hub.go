package http

import (
	"sync"

	"quizrally/internal/domain"
)

// RoomHub implements game.Broadcaster: a table of rooms keyed by PIN, each a
// set of connected clients with buffered send channels. Publishing never
// blocks; a slow client loses its oldest undelivered event instead of
// stalling the room.
type RoomHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*RoomClient]struct{}
}

// RoomClient is one connection's membership in a room.
type RoomClient struct {
	participantID string
	send          chan domain.Event
}

// Events is the stream the connection's writer drains.
func (c *RoomClient) Events() <-chan domain.Event {
	return c.send
}

func NewRoomHub() *RoomHub {
	return &RoomHub{rooms: make(map[string]map[*RoomClient]struct{})}
}

// Join subscribes a connection to a PIN's room.
func (h *RoomHub) Join(pin, participantID string) *RoomClient {
	client := &RoomClient{
		participantID: participantID,
		send:          make(chan domain.Event, 16),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[pin]
	if !ok {
		room = make(map[*RoomClient]struct{})
		h.rooms[pin] = room
	}
	room[client] = struct{}{}
	return client
}

// Leave unsubscribes and closes the client's event stream. Close happens
// under the write lock, mutually exclusive with in-flight publishes.
func (h *RoomHub) Leave(pin string, client *RoomClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[pin]
	if !ok {
		return
	}
	if _, member := room[client]; !member {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, pin)
	}
	close(client.send)
}

func (h *RoomHub) Publish(pin string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[pin] {
		client.enqueue(event)
	}
}

func (h *RoomHub) PublishTo(pin, participantID string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[pin] {
		if client.participantID == participantID {
			client.enqueue(event)
		}
	}
}

func (c *RoomClient) enqueue(event domain.Event) {
	select {
	case c.send <- event:
	default:
		// Drop the oldest pending event so the latest state wins.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- event:
		default:
		}
	}
}
