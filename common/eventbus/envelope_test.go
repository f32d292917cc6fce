package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvelope_EventIDEqualsIdempotencyKey(t *testing.T) {
	counters := NewSequenceCounters()
	env := BuildEnvelope(counters, BuildEnvelopeInput{
		EventType:  "run.updated",
		EntityKind: "run",
		EntityID:   "7",
	})
	require.NotEmpty(t, env.EventID)
	assert.Equal(t, env.EventID, env.IdempotencyKey)
	assert.Equal(t, "run:7", env.SequenceStream)
}

func TestBuildEnvelope_BlankEntityIDUsesGlobalStream(t *testing.T) {
	counters := NewSequenceCounters()
	env := BuildEnvelope(counters, BuildEnvelopeInput{EventType: "heartbeat", EntityKind: "system"})
	assert.Equal(t, "heartbeat:global", env.SequenceStream)
}

func TestBuildEnvelope_SequenceMonotonicPerStream(t *testing.T) {
	counters := NewSequenceCounters()
	first := BuildEnvelope(counters, BuildEnvelopeInput{EventType: "x", EntityKind: "run", EntityID: "1"})
	second := BuildEnvelope(counters, BuildEnvelopeInput{EventType: "x", EntityKind: "run", EntityID: "1"})
	other := BuildEnvelope(counters, BuildEnvelopeInput{EventType: "x", EntityKind: "run", EntityID: "2"})

	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, 2, second.Sequence)
	assert.Equal(t, 1, other.Sequence)
}

func TestNormalizeRuntimeMetadata_NilRuntimeReturnsNil(t *testing.T) {
	assert.Nil(t, NormalizeRuntimeMetadata(nil))
}

func TestNormalizeRuntimeMetadata_CoercesBoolsAndPreflightPointer(t *testing.T) {
	meta := NormalizeRuntimeMetadata(map[string]interface{}{
		"selected_provider":    "workspace",
		"fallback_attempted":   "true",
		"dispatch_uncertain":   false,
		"cli_preflight_passed": "yes",
	})
	require.NotNil(t, meta)
	assert.Equal(t, "workspace", meta.SelectedProvider)
	assert.True(t, meta.FallbackAttempted)
	assert.False(t, meta.DispatchUncertain)
	require.NotNil(t, meta.CLIPreflightPassed)
	assert.True(t, *meta.CLIPreflightPassed)
}

func TestNormalizeRuntimeMetadata_MissingPreflightKeyLeavesPointerNil(t *testing.T) {
	meta := NormalizeRuntimeMetadata(map[string]interface{}{"selected_provider": "k8s"})
	require.NotNil(t, meta)
	assert.Nil(t, meta.CLIPreflightPassed)
}
