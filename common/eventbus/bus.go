package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix is the Redis pub/sub channel namespace cmd/fanout subscribes
// to with PSubscribe(ChannelPrefix + "*").
const ChannelPrefix = "workflow:events:"

// Publisher delivers a raw envelope payload to one channel. RedisPublisher
// is the production implementation; InMemoryPublisher is the test double.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes over Redis Pub/Sub, generalizing
// cmd/fanout/redis_subscriber.go's "workflow:events:{username}" channel to
// "workflow:events:{room_key}" (room keys may themselves contain colons,
// e.g. "flowchart_run:42").
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an existing redis.Client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Bus emits SocketEventEnvelopes, namespaced and sequenced, fanning out to
// one publish per deduplicated room_key, or a single namespace-wide publish
// if no rooms are supplied. Mirrors realtime_events.py's emit_contract_event.
type Bus struct {
	publisher Publisher
	counters  *SequenceCounters
	namespace string
}

// NewBus constructs a Bus. namespace is the broadcast channel used when an
// event carries no room_keys.
func NewBus(publisher Publisher, counters *SequenceCounters, namespace string) *Bus {
	return &Bus{publisher: publisher, counters: counters, namespace: namespace}
}

// EmitContractEvent builds the envelope and publishes it once per room_key,
// or once to the namespace if room_keys is empty. It returns the built
// envelope regardless of any publish error, matching the Python contract of
// always returning the envelope it built.
func (b *Bus) EmitContractEvent(ctx context.Context, in BuildEnvelopeInput) (Envelope, error) {
	envelope := BuildEnvelope(b.counters, in)
	body, err := json.Marshal(envelope)
	if err != nil {
		return envelope, fmt.Errorf("eventbus: marshal envelope: %w", err)
	}

	if len(envelope.RoomKeys) == 0 {
		if err := b.publisher.Publish(ctx, ChannelPrefix+b.namespace, body); err != nil {
			return envelope, fmt.Errorf("eventbus: publish to namespace %s: %w", b.namespace, err)
		}
		return envelope, nil
	}

	for _, room := range envelope.RoomKeys {
		if err := b.publisher.Publish(ctx, ChannelPrefix+room, body); err != nil {
			return envelope, fmt.Errorf("eventbus: publish to room %s: %w", room, err)
		}
	}
	return envelope, nil
}

// InMemoryPublisher records publishes in-process, for tests and for
// single-process callers that don't need cross-process fanout.
type InMemoryPublisher struct {
	Published []PublishedMessage
}

// PublishedMessage is one recorded InMemoryPublisher.Publish call.
type PublishedMessage struct {
	Channel string
	Payload []byte
}

// NewInMemoryPublisher constructs an empty InMemoryPublisher.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.Published = append(p.Published, PublishedMessage{Channel: channel, Payload: payload})
	return nil
}
