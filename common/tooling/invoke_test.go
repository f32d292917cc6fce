package tooling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/common/idempotency"
)

func TestResolveScaffold_DefaultsAndAlternates(t *testing.T) {
	assert.Equal(t, "deterministic.decision/evaluate", ResolveScaffold("decision", ""))
	assert.Equal(t, "deterministic.memory/add", ResolveScaffold("memory", ""))
	assert.Equal(t, "deterministic.memory/retrieve", ResolveScaffold("memory", "retrieve"))
	assert.Equal(t, "deterministic.memory/add", ResolveScaffold("memory", "nonsense"))
	assert.Equal(t, "deterministic.milestone/mark_complete", ResolveScaffold("milestone", "mark_complete"))
	assert.Equal(t, "deterministic.plan/create_or_update_plan", ResolveScaffold("plan", ""))
}

func TestInvokeDeterministicTool_Success(t *testing.T) {
	outcome, err := InvokeDeterministicTool(
		Config{NodeType: "decision"},
		func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
			return map[string]interface{}{"matched_connector_ids": []string{"e1"}}, map[string]interface{}{"route_key": "e1"}, nil
		},
		nil, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "success", outcome.ExecutionStatus)
	assert.Equal(t, 1, outcome.AttemptCount)
	assert.False(t, outcome.FallbackUsed)
}

func TestInvokeDeterministicTool_RetriesThenFails_NoFallback(t *testing.T) {
	attempts := 0
	_, err := InvokeDeterministicTool(
		Config{NodeType: "memory", MaxAttempts: 3},
		func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
			attempts++
			return nil, nil, errors.New("boom")
		},
		nil, nil,
	)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestInvokeDeterministicTool_FallbackProducesSuccessWithWarning(t *testing.T) {
	outcome, err := InvokeDeterministicTool(
		Config{NodeType: "memory", MaxAttempts: 1},
		func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
			return nil, nil, errors.New("primary_runtime_error")
		},
		nil,
		func(lastErr error) (map[string]interface{}, map[string]interface{}, string, error) {
			return map[string]interface{}{"action": "add"}, map[string]interface{}{}, "fell back after: " + lastErr.Error(), nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "success_with_warning", outcome.ExecutionStatus)
	assert.True(t, outcome.FallbackUsed)
	require.Len(t, outcome.Warnings, 1)
}

func TestInvokeDeterministicTool_IdempotencyConflict(t *testing.T) {
	registry := idempotency.NewRegistry()
	cfg := Config{NodeType: "decision", IdempotencyKey: "dispatch:1", Registry: registry}
	invoke := func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
		return map[string]interface{}{}, map[string]interface{}{}, nil
	}

	_, err := InvokeDeterministicTool(cfg, invoke, nil, nil)
	require.NoError(t, err)

	_, err = InvokeDeterministicTool(cfg, invoke, nil, nil)
	require.ErrorIs(t, err, ErrToolInvocationIdempotency)
}
