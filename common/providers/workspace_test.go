package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceExecutor_S1_MinimalRun(t *testing.T) {
	exec := NewWorkspaceExecutor(nil)
	req := ExecutionRequest{RunID: "R1", NodeID: "start", ExecutionID: "R1-start-0", WorkspaceIdentity: "tenant-a"}

	result, err := exec.Execute(context.Background(), req, func(ctx context.Context, r ExecutionRequest) (map[string]interface{}, error) {
		return map[string]interface{}{"node_type": "start"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "workspace", result.Metadata.SelectedProvider)
	assert.Equal(t, "workspace", result.Metadata.FinalProvider)
	assert.Equal(t, DispatchConfirmed, result.Metadata.DispatchStatus)
	assert.Equal(t, "workspace:workspace-R1-start-0", result.Metadata.ProviderDispatchID)
	assert.False(t, result.Metadata.FallbackAttempted)
}

func TestWorkspaceExecutor_DuplicateDispatchKeyFails(t *testing.T) {
	exec := NewWorkspaceExecutor(nil)
	req := ExecutionRequest{RunID: "R2", NodeID: "n1", ExecutionID: "dup-key"}
	cb := func(ctx context.Context, r ExecutionRequest) (map[string]interface{}, error) {
		return map[string]interface{}{}, nil
	}

	first, err := exec.Execute(context.Background(), req, cb)
	require.NoError(t, err)
	assert.Equal(t, "success", first.Status)

	second, err := exec.Execute(context.Background(), req, cb)
	require.NoError(t, err)
	assert.Equal(t, "failed", second.Status)
}

func TestWorkspaceExecutor_CallbackError(t *testing.T) {
	exec := NewWorkspaceExecutor(nil)
	req := ExecutionRequest{RunID: "R3", NodeID: "n1", ExecutionID: "exec-err"}

	result, err := exec.Execute(context.Background(), req, func(ctx context.Context, r ExecutionRequest) (map[string]interface{}, error) {
		return nil, errors.New("handler blew up")
	})

	require.NoError(t, err)
	assert.Equal(t, "failed", result.Status)
	assert.Error(t, result.Err)
}
