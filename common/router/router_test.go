package router

import (
	"context"
	"testing"

	"github.com/lyzr/orchestrator/common/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_S1_WorkspaceSelected(t *testing.T) {
	ws := providers.NewWorkspaceExecutor(nil)
	r := New("workspace", "tenant-a", ws, nil)
	assert.Equal(t, "workspace", r.Provider)
}

func TestNew_S2_UnknownProviderCoercedToKubernetes(t *testing.T) {
	r := New("docker", "tenant-a", nil, nil)
	assert.Equal(t, "kubernetes", r.Provider)
}

func TestNew_EmptyProviderCoercedToKubernetes(t *testing.T) {
	r := New("", "tenant-a", nil, nil)
	assert.Equal(t, "kubernetes", r.Provider)
}

func TestRouteRequest_StampsWorkspaceIdentity(t *testing.T) {
	r := New("workspace", "tenant-a", providers.NewWorkspaceExecutor(nil), nil)
	routed := r.RouteRequest(providers.ExecutionRequest{RunID: "R1", NodeID: "n1"})
	assert.Equal(t, "tenant-a", routed.WorkspaceIdentity)
}

func TestExecuteRouted_DelegatesToSelectedProvider(t *testing.T) {
	ws := providers.NewWorkspaceExecutor(nil)
	r := New("workspace", "tenant-a", ws, nil)

	result, err := r.ExecuteRouted(context.Background(), providers.ExecutionRequest{RunID: "R1", NodeID: "n1", ExecutionID: "R1-n1-0"},
		func(ctx context.Context, req providers.ExecutionRequest) (map[string]interface{}, error) {
			return map[string]interface{}{"ok": true}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "workspace", result.Metadata.SelectedProvider)
	assert.Equal(t, "workspace", result.Metadata.FinalProvider)
}

func TestExecuteRouted_NoProviderRegisteredForSelection(t *testing.T) {
	r := New("kubernetes", "tenant-a", nil, nil)

	_, err := r.ExecuteRouted(context.Background(), providers.ExecutionRequest{RunID: "R1", NodeID: "n1"},
		func(ctx context.Context, req providers.ExecutionRequest) (map[string]interface{}, error) {
			return nil, nil
		})

	require.Error(t, err)
}
