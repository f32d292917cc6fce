package noderuntime

import (
	"context"
	"testing"

	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneHandler_CreateOrUpdateDefault(t *testing.T) {
	invoker := func(ctx context.Context, operation string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		return map[string]interface{}{
			"action":         operation,
			"action_results": []interface{}{map[string]interface{}{"op": operation}},
			"milestone":      map[string]interface{}{"id": "ms1"},
			"routing_state":  map[string]interface{}{},
		}, map[string]interface{}{}, nil
	}
	handler := NewMilestoneHandler(idempotency.NewRegistry(), invoker)

	result, err := handler(context.Background(), Request{RunID: "R1", NodeID: "m1", Config: map[string]interface{}{}})
	require.NoError(t, err)
	results := result.OutputState["action_results"].([]interface{})
	require.Len(t, results, 1)
}

func TestPlanHandler_CompletePlanItem(t *testing.T) {
	invoker := func(ctx context.Context, operation string, req Request) (map[string]interface{}, map[string]interface{}, error) {
		return map[string]interface{}{
			"mode":           operation,
			"store_mode":     "default",
			"action_results": []interface{}{"x"},
			"plan":           map[string]interface{}{"id": "p1"},
			"routing_state":  map[string]interface{}{},
		}, map[string]interface{}{}, nil
	}
	handler := NewPlanHandler(idempotency.NewRegistry(), invoker)

	result, err := handler(context.Background(), Request{
		RunID: "R2", NodeID: "p1",
		Config: map[string]interface{}{"operation": "complete_plan_item"},
	})
	require.NoError(t, err)
	assert.Equal(t, "complete_plan_item", result.OutputState["mode"])
}
