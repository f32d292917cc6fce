package noderuntime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/lyzr/orchestrator/common/tooling"
	"github.com/tidwall/gjson"
)

// NewDecisionHandler wraps decision evaluation in C3's deterministic-tool
// envelope under the "deterministic.decision" scaffold. Per spec.md §4.8: if
// decision_conditions is non-empty, the operation is "evaluate" (each
// condition runs against upstream outputs); otherwise it falls back to the
// legacy "route" operation using route_field_path.
func NewDecisionHandler(registry *idempotency.Registry, evaluator *CELEvaluator) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		conditions, _ := req.Config["decision_conditions"].([]interface{})
		operation := "route"
		if len(conditions) > 0 {
			operation = "evaluate"
		}

		cfg := tooling.Config{
			NodeType:      "decision",
			Operation:     operation,
			IdempotencyKey: contracts.NodeRunIdempotencyKey(req.RunID, req.NodeID, req.ExecutionIndex),
			MaxAttempts:   1,
			Registry:      registry,
		}

		outcome, err := tooling.InvokeDeterministicTool(cfg,
			func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
				if operation == "evaluate" {
					return evaluateDecisionConditions(evaluator, conditions, req.UpstreamOutputs)
				}
				return evaluateLegacyRoute(req)
			},
			func(output, routing map[string]interface{}) error {
				return contracts.ValidateRoutingOutput(toRoutingOutput(routing))
			},
			nil, // decision has no dual-mode fallback; exhaustion just fails
		)
		if err != nil {
			return Result{}, err
		}

		return Result{
			OutputState:                     tooling.MergeOutcomeIntoOutput(outcome),
			RoutingState:                    outcome.RoutingState,
			DeterministicFallbackUsed:       outcome.FallbackUsed,
			DeterministicSuccessWithWarning: outcome.ExecutionStatus == "success_with_warning",
		}, nil
	}
}

func evaluateDecisionConditions(evaluator *CELEvaluator, conditions []interface{}, upstream map[string]map[string]interface{}) (map[string]interface{}, map[string]interface{}, error) {
	evaluations := make([]interface{}, 0, len(conditions))
	matched := make([]string, 0)
	var routeKey string

	for _, raw := range conditions {
		cond, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		connectorID, _ := cond["connector_id"].(string)
		conditionText, _ := cond["condition_text"].(string)

		isMatch, evalErr := evaluator.Evaluate(conditionText, flattenUpstream(upstream), map[string]interface{}{"nodes": upstream})
		reason := ""
		if evalErr != nil {
			reason = evalErr.Error()
		}

		evaluations = append(evaluations, map[string]interface{}{
			"connector_id":   connectorID,
			"condition_text": conditionText,
			"matched":        isMatch,
			"reason":         reason,
		})

		if isMatch {
			matched = append(matched, connectorID)
			if routeKey == "" {
				if rk, ok := cond["route_key"].(string); ok {
					routeKey = rk
				}
			}
		}
	}

	output := map[string]interface{}{
		"node_type":             "decision",
		"matched_connector_ids": matched,
		"evaluations":           evaluations,
		"no_match":              len(matched) == 0,
	}
	routing := map[string]interface{}{
		"matched_connector_ids": matched,
		"no_match":              len(matched) == 0,
	}
	if routeKey != "" {
		routing["route_key"] = routeKey
	}

	return output, routing, nil
}

func evaluateLegacyRoute(req Request) (map[string]interface{}, map[string]interface{}, error) {
	fieldPath, _ := req.Config["route_field_path"].(string)
	if fieldPath == "" {
		return nil, nil, fmt.Errorf("noderuntime: decision route operation requires route_field_path")
	}

	upstreamJSON, err := json.Marshal(req.UpstreamOutputs)
	if err != nil {
		return nil, nil, fmt.Errorf("noderuntime: marshaling upstream outputs: %w", err)
	}

	result := gjson.GetBytes(upstreamJSON, fieldPath)
	routeKey := result.String()

	output := map[string]interface{}{
		"node_type": "decision",
		"no_match":  !result.Exists(),
	}
	routing := map[string]interface{}{
		"no_match": !result.Exists(),
	}
	if result.Exists() {
		routing["route_key"] = routeKey
	}
	return output, routing, nil
}

func flattenUpstream(upstream map[string]map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(upstream))
	for k, v := range upstream {
		flat[k] = v
	}
	return flat
}

func toRoutingOutput(routing map[string]interface{}) contracts.RoutingOutput {
	out := contracts.RoutingOutput{}
	if v, ok := routing["route_key"].(string); ok {
		out.RouteKey = v
	}
	if v, ok := routing["no_match"].(bool); ok {
		out.NoMatch = v
	}
	if ids, ok := routing["matched_connector_ids"].([]string); ok {
		out.MatchedConnectorIDs = ids
	}
	return out
}
