package eventbus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitsOncePerRoom(t *testing.T) {
	pub := NewInMemoryPublisher()
	bus := NewBus(pub, NewSequenceCounters(), "global")

	_, err := bus.EmitContractEvent(context.Background(), BuildEnvelopeInput{
		EventType:  "run.updated",
		EntityKind: "run",
		EntityID:   "1",
		RoomKeys:   []string{"run:1", "flowchart:2"},
	})
	require.NoError(t, err)

	require.Len(t, pub.Published, 2)
	assert.Equal(t, ChannelPrefix+"run:1", pub.Published[0].Channel)
	assert.Equal(t, ChannelPrefix+"flowchart:2", pub.Published[1].Channel)
}

func TestBus_BroadcastsToNamespaceWhenNoRooms(t *testing.T) {
	pub := NewInMemoryPublisher()
	bus := NewBus(pub, NewSequenceCounters(), "global")

	_, err := bus.EmitContractEvent(context.Background(), BuildEnvelopeInput{EventType: "heartbeat", EntityKind: "system"})
	require.NoError(t, err)

	require.Len(t, pub.Published, 1)
	assert.Equal(t, ChannelPrefix+"global", pub.Published[0].Channel)
}

func TestBus_PublishedPayloadRoundTripsEnvelope(t *testing.T) {
	pub := NewInMemoryPublisher()
	bus := NewBus(pub, NewSequenceCounters(), "global")

	sent, err := bus.EmitContractEvent(context.Background(), BuildEnvelopeInput{
		EventType:  "run.updated",
		EntityKind: "run",
		EntityID:   "1",
		RoomKeys:   []string{"run:1"},
		Payload:    map[string]interface{}{"status": "running"},
	})
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(pub.Published[0].Payload, &got))
	assert.Equal(t, sent.EventID, got.EventID)
	assert.Equal(t, "running", got.Payload["status"])
}
