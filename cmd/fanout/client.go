package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lyzr/orchestrator/common/eventbus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 30 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Client represents a WebSocket connection subscribed to zero or more room
// keys. Server-push only for events; clients may send subscribe/unsubscribe
// control frames to change room membership without reconnecting.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	rooms map[string]bool
	send  chan []byte
}

// controlMessage is a client->server subscribe/unsubscribe request, per
// spec.md §4.10's subscribe/unsubscribe protocol.
type controlMessage struct {
	Action string `json:"action"`
	Room   string `json:"room_key"`
}

// NewClient creates a new Client instance subscribed to the given initial
// rooms (validated against eventbus.RoomPrefixes by the caller).
func NewClient(hub *Hub, conn *websocket.Conn, initialRooms []string) *Client {
	rooms := make(map[string]bool, len(initialRooms))
	for _, room := range initialRooms {
		rooms[room] = true
	}
	return &Client{
		hub:   hub,
		conn:  conn,
		rooms: rooms,
		send:  make(chan []byte, 512), // Increased buffer for bursts
	}
}

func (c *Client) roomList() []string {
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// readPump pumps subscribe/unsubscribe control frames from the WebSocket
// connection to the hub, and handles ping/pong and disconnect detection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("Invalid control message: %v", err)
			continue
		}
		if !eventbus.ValidRoomKey(msg.Room) {
			log.Printf("Rejected subscribe to invalid room key: %q", msg.Room)
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.hub.subscribe <- &subscription{client: c, room: msg.Room, subscribe: true}
		case "unsubscribe":
			c.hub.subscribe <- &subscription{client: c, room: msg.Room, subscribe: false}
		default:
			log.Printf("Unknown control action: %q", msg.Action)
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Send each message as a separate WebSocket frame
			// This ensures frontend can parse each JSON object individually
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Send any queued messages as separate frames
			// Don't batch them together to avoid JSON parsing issues
			n := len(c.send)
			for i := 0; i < n; i++ {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
