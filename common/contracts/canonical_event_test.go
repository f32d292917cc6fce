package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSocketEventType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "already canonical", input: "node:task:updated", want: "node:task:updated"},
		{name: "dot separated", input: "node.task.updated", want: "node:task:updated"},
		{name: "mixed case with extra segments", input: "Node.Task.Progress.Updated", want: "node:task:progress_updated"},
		{name: "punctuation collapsed within segment", input: "node:ta!!sk:up--dated", want: "node:ta_sk:up_dated"},
		{name: "too few segments", input: "node:task", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalSocketEventType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalSocketEventType_S10(t *testing.T) {
	got, err := CanonicalSocketEventType("Node.Task.Progress.Updated")
	require.NoError(t, err)
	assert.Equal(t, "node:task:progress_updated", got)
}

func TestValidateArtifactPayload(t *testing.T) {
	t.Run("rejects missing routing_state", func(t *testing.T) {
		err := ValidateArtifactPayload("start", map[string]interface{}{
			"node_type":      "start",
			"input_context":  map[string]interface{}{},
			"output_state":   map[string]interface{}{},
		})
		require.Error(t, err)
	})

	t.Run("accepts memory payload with action and action_results", func(t *testing.T) {
		err := ValidateArtifactPayload("memory", map[string]interface{}{
			"action":         "add",
			"action_results": []interface{}{},
			"routing_state":  map[string]interface{}{},
		})
		require.NoError(t, err)
	})
}

func TestValidateRoutingOutput_RejectsEmptyConnectorEntries(t *testing.T) {
	err := ValidateRoutingOutput(RoutingOutput{MatchedConnectorIDs: []string{"e1", ""}})
	require.Error(t, err)
}

func TestIdempotencyKeyBuilders(t *testing.T) {
	assert.Equal(t, "flowchart_run:R:flowchart_node:N:execution:3", NodeRunIdempotencyKey("R", "N", 3))
	assert.Equal(t, "flowchart_run:R:node_run:K:artifact:decision", ArtifactIdempotencyKey("R", "K", "decision"))
	assert.Equal(t, "workspace:exec-1", DispatchIdempotencyKey("workspace", "exec-1"))
}
