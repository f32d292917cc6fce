package noderuntime

import (
	"context"
	"errors"
	"testing"

	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHandler_PrimarySucceeds(t *testing.T) {
	invoker := func(ctx context.Context, mode string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		return map[string]interface{}{"text": "stored"}, map[string]interface{}{}, nil
	}
	handler := NewMemoryHandler(idempotency.NewRegistry(), invoker)

	result, err := handler(context.Background(), Request{RunID: "R1", NodeID: "mem", Config: map[string]interface{}{"operation": "add"}})
	require.NoError(t, err)
	assert.False(t, result.DeterministicFallbackUsed)
}

func TestMemoryHandler_PrimaryFailsFallbackDisabledRethrows(t *testing.T) {
	invoker := func(ctx context.Context, mode string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		return nil, nil, errors.New("boom")
	}
	handler := NewMemoryHandler(idempotency.NewRegistry(), invoker)

	_, err := handler(context.Background(), Request{RunID: "R2", NodeID: "mem", Config: map[string]interface{}{}})
	require.Error(t, err)
}

func TestMemoryHandler_FallbackEnabledSwitchesMode(t *testing.T) {
	invoker := func(ctx context.Context, mode string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		if mode == "deterministic" {
			return nil, nil, errors.New("primary down")
		}
		return map[string]interface{}{"text": "recovered via llm_guided"}, map[string]interface{}{}, nil
	}
	handler := NewMemoryHandler(idempotency.NewRegistry(), invoker)

	result, err := handler(context.Background(), Request{
		RunID: "R3", NodeID: "mem",
		Config: map[string]interface{}{"mode": "deterministic", "fallback_enabled": true},
	})
	require.NoError(t, err)
	assert.True(t, result.DeterministicFallbackUsed)
	assert.True(t, result.DeterministicSuccessWithWarning)
	assert.Equal(t, "primary_runtime_error", result.FallbackReason)
	assert.Equal(t, "deterministic", result.OutputState["failed_mode"])
}

func TestMemoryHandler_RetrieveEmptyResultCountsAsPrimaryEmptyResult(t *testing.T) {
	invoker := func(ctx context.Context, mode string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		if mode == "deterministic" {
			return map[string]interface{}{"text": ""}, map[string]interface{}{}, nil
		}
		return map[string]interface{}{"text": "found via llm_guided"}, map[string]interface{}{}, nil
	}
	handler := NewMemoryHandler(idempotency.NewRegistry(), invoker)

	result, err := handler(context.Background(), Request{
		RunID: "R4", NodeID: "mem",
		Config: map[string]interface{}{"mode": "deterministic", "operation": "retrieve", "fallback_enabled": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "primary_empty_result", result.FallbackReason)
}

func TestMemoryHandler_FallbackAlsoFailsRaisesFallbackRuntimeError(t *testing.T) {
	invoker := func(ctx context.Context, mode string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		return nil, nil, errors.New("down")
	}
	handler := NewMemoryHandler(idempotency.NewRegistry(), invoker)

	_, err := handler(context.Background(), Request{
		RunID: "R5", NodeID: "mem",
		Config: map[string]interface{}{"fallback_enabled": true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback_runtime_error")
}
