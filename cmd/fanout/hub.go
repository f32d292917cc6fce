package main

import (
	"log"
	"sync"
)

// Hub maintains active WebSocket connections and broadcasts messages by
// room key, generalized from the original per-username connection map to
// the full room-key model (task/run/flowchart/flowchart_run/
// flowchart_node/thread/download_job) of the realtime event bus.
type Hub struct {
	// Map: room key -> []*Client
	connections map[string][]*Client
	mutex       sync.RWMutex

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	// Channel for dynamic room join/leave requests
	subscribe chan *subscription

	// Channel for broadcasting messages
	broadcast chan *Message
}

// Message represents a message to be broadcast to one room.
type Message struct {
	Room string
	Data []byte
}

type subscription struct {
	client    *Client
	room      string
	subscribe bool
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *subscription, 64),
		broadcast:   make(chan *Message, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("Hub started")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			if sub.subscribe {
				h.joinRoom(sub.client, sub.room)
			} else {
				h.leaveRoom(sub.client, sub.room)
			}

		case message := <-h.broadcast:
			h.broadcastToRoom(message)
		}
	}
}

// registerClient adds a client to the hub under each of its initial rooms
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for room := range client.rooms {
		h.connections[room] = append(h.connections[room], client)
	}
	log.Printf("Client registered: rooms=%v", client.roomList())
}

// joinRoom subscribes an already-registered client to an additional room
func (h *Hub) joinRoom(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.connections[room] = append(h.connections[room], client)
	client.rooms[room] = true
	log.Printf("Client joined room=%s, room_size=%d", room, len(h.connections[room]))
}

// leaveRoom unsubscribes a client from one room without disconnecting it
func (h *Hub) leaveRoom(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeFromRoom(client, room)
	delete(client.rooms, room)
}

func (h *Hub) removeFromRoom(client *Client, room string) {
	clients := h.connections[room]
	for i, c := range clients {
		if c == client {
			h.connections[room] = append(clients[:i], clients[i+1:]...)
			if len(h.connections[room]) == 0 {
				delete(h.connections, room)
			}
			return
		}
	}
}

// unregisterClient removes a client from every room it was subscribed to
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for room := range client.rooms {
		h.removeFromRoom(client, room)
	}
	close(client.send)
	log.Printf("Client unregistered: rooms=%v", client.roomList())
}

// broadcastToRoom sends a message to all connections subscribed to a room
func (h *Hub) broadcastToRoom(message *Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := h.connections[message.Room]
	if len(clients) == 0 {
		// No subscribers for this room, skip
		return
	}

	log.Printf("Broadcasting to room=%s, client_count=%d", message.Room, len(clients))

	for _, client := range clients {
		select {
		case client.send <- message.Data:
			// Message sent successfully
		default:
			// Client's send buffer is full, close the connection
			log.Printf("Client send buffer full, closing connection: room=%s", message.Room)
			close(client.send)
		}
	}
}

// GetConnectionCount returns the total number of active room memberships
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.connections {
		count += len(clients)
	}
	return count
}

// GetRoomCount returns the number of rooms with at least one subscriber
func (h *Hub) GetRoomCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}
