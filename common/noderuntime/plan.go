package noderuntime

import (
	"context"

	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/lyzr/orchestrator/common/tooling"
)

// NewPlanHandler builds the "plan" node handler: "create_or_update_plan"
// (default) or "complete_plan_item", carrying mode and store_mode through to
// the invoker.
func NewPlanHandler(registry *idempotency.Registry, invoker DeterministicToolInvoker) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		operation, _ := req.Config["operation"].(string)

		cfg := tooling.Config{
			NodeType:       "plan",
			Operation:      operation,
			IdempotencyKey: contracts.NodeRunIdempotencyKey(req.RunID, req.NodeID, req.ExecutionIndex),
			MaxAttempts:    1,
			Registry:       registry,
		}

		outcome, err := tooling.InvokeDeterministicTool(cfg,
			func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
				return invoker(ctx, operation, req)
			},
			func(output, routing map[string]interface{}) error {
				return contracts.ValidateArtifactPayload("plan", output)
			},
			nil,
		)
		if err != nil {
			return Result{}, err
		}

		return Result{OutputState: tooling.MergeOutcomeIntoOutput(outcome), RoutingState: outcome.RoutingState}, nil
	}
}
