package noderuntime

import (
	"context"
	"testing"

	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionHandler_EvaluateModeMatchesCondition(t *testing.T) {
	handler := NewDecisionHandler(idempotency.NewRegistry(), NewCELEvaluator())

	req := Request{
		RunID: "R1", NodeID: "decide", ExecutionIndex: 0,
		Config: map[string]interface{}{
			"decision_conditions": []interface{}{
				map[string]interface{}{"connector_id": "c1", "condition_text": "output.approver.approved == true", "route_key": "approved"},
			},
		},
		UpstreamOutputs: map[string]map[string]interface{}{
			"approver": {"approved": true},
		},
	}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, false, result.OutputState["no_match"])
	assert.Equal(t, "approved", result.RoutingState["route_key"])
}

func TestDecisionHandler_EvaluateModeNoMatch(t *testing.T) {
	handler := NewDecisionHandler(idempotency.NewRegistry(), NewCELEvaluator())

	req := Request{
		RunID: "R2", NodeID: "decide", ExecutionIndex: 0,
		Config: map[string]interface{}{
			"decision_conditions": []interface{}{
				map[string]interface{}{"connector_id": "c1", "condition_text": "output.approver.approved == true"},
			},
		},
		UpstreamOutputs: map[string]map[string]interface{}{
			"approver": {"approved": false},
		},
	}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, true, result.OutputState["no_match"])
}

func TestDecisionHandler_LegacyRouteUsesFieldPath(t *testing.T) {
	handler := NewDecisionHandler(idempotency.NewRegistry(), NewCELEvaluator())

	req := Request{
		RunID: "R3", NodeID: "decide", ExecutionIndex: 0,
		Config: map[string]interface{}{"route_field_path": "classifier.label"},
		UpstreamOutputs: map[string]map[string]interface{}{
			"classifier": {"label": "urgent"},
		},
	}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "urgent", result.RoutingState["route_key"])
}
