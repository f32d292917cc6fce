package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKubernetesExecutor_MissingKubeconfigYieldsNilClient(t *testing.T) {
	exec, err := NewKubernetesExecutor(KubernetesConfig{Namespace: "default", Image: "llmctl/executor:latest"})
	require.NoError(t, err)
	assert.Nil(t, exec.client)
}

func TestKubernetesExecutor_BuildJob_Manifest(t *testing.T) {
	exec := &KubernetesExecutor{cfg: KubernetesConfig{
		Namespace:        "runs",
		Image:            "llmctl/executor:latest",
		GPULimit:         2,
		JobTTLSeconds:    3600,
		ImagePullSecrets: []string{"registry-creds"},
	}}

	req := ExecutionRequest{RunID: "R1", NodeID: "task-1", ExecutionIndex: 3, WorkspaceIdentity: "tenant-a"}
	job := exec.buildJob(req)

	assert.Equal(t, "runs", job.Namespace)
	assert.Equal(t, "tenant-a", job.Labels["llmctl.io/workspace-identity"])
	assert.Equal(t, "R1", job.Labels["llmctl.io/run-id"])
	assert.Equal(t, "task-1", job.Labels["llmctl.io/node-id"])
	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	assert.EqualValues(t, 3600, *job.Spec.TTLSecondsAfterFinished)
	require.Len(t, job.Spec.Template.Spec.ImagePullSecrets, 1)
	assert.Equal(t, "registry-creds", job.Spec.Template.Spec.ImagePullSecrets[0].Name)

	limits := job.Spec.Template.Spec.Containers[0].Resources.Limits
	gpu, ok := limits["nvidia.com/gpu"]
	require.True(t, ok)
	assert.Equal(t, int64(2), gpu.Value())
}

func TestKubernetesExecutor_BuildJob_NoGPUWhenZero(t *testing.T) {
	exec := &KubernetesExecutor{cfg: KubernetesConfig{Namespace: "runs", Image: "llmctl/executor:latest"}}
	job := exec.buildJob(ExecutionRequest{RunID: "R1", NodeID: "n1"})
	assert.Nil(t, job.Spec.Template.Spec.Containers[0].Resources.Limits)
}
