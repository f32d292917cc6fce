package main

import (
	"context"
	"log"
	"strings"

	"github.com/lyzr/orchestrator/common/eventbus"
	"github.com/redis/go-redis/v9"
)

// RedisSubscriber listens to Redis PubSub and forwards messages to Hub
type RedisSubscriber struct {
	redis *redis.Client
	hub   *Hub
}

// NewRedisSubscriber creates a new RedisSubscriber instance
func NewRedisSubscriber(redisClient *redis.Client, hub *Hub) *RedisSubscriber {
	return &RedisSubscriber{
		redis: redisClient,
		hub:   hub,
	}
}

// Start begins listening to Redis PubSub channels
func (s *RedisSubscriber) Start(ctx context.Context) {
	// Subscribe to pattern: workflow:events:*
	// This allows us to receive events for every room key
	pubsub := s.redis.PSubscribe(ctx, eventbus.ChannelPrefix+"*")
	defer pubsub.Close()

	log.Printf("Redis subscriber started, listening to: %s*", eventbus.ChannelPrefix)

	// Wait for confirmation that subscription was successful
	_, err := pubsub.Receive(ctx)
	if err != nil {
		log.Fatalf("Failed to subscribe to Redis: %v", err)
	}

	log.Println("Redis subscription confirmed")

	// Listen for messages
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("Redis subscriber stopping")
			return

		case msg := <-ch:
			if msg == nil {
				continue
			}

			// Extract room key from channel name.
			// Channel format: workflow:events:{room_key}, where room_key
			// itself may contain colons (e.g. "flowchart_run:42").
			room := extractRoomFromChannel(msg.Channel)
			if room == "" {
				log.Printf("Invalid channel format: %s", msg.Channel)
				continue
			}

			log.Printf("Received event for room=%s, size=%d bytes", room, len(msg.Payload))

			// Forward to hub
			s.hub.broadcast <- &Message{
				Room: room,
				Data: []byte(msg.Payload),
			}
		}
	}
}

// extractRoomFromChannel extracts the room key from a channel name.
// Example: "workflow:events:flowchart_run:42" → "flowchart_run:42"
func extractRoomFromChannel(channel string) string {
	if !strings.HasPrefix(channel, eventbus.ChannelPrefix) {
		return ""
	}
	return strings.TrimPrefix(channel, eventbus.ChannelPrefix)
}
