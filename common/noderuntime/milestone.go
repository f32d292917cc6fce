package noderuntime

import (
	"context"

	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/lyzr/orchestrator/common/tooling"
)

// DeterministicToolInvoker performs one deterministic-tool call for a given
// operation; used by milestone and plan, which (unlike memory) have no
// dual-mode fallback — only the C3 retry envelope applies.
type DeterministicToolInvoker func(ctx context.Context, operation string, req Request) (output, routing map[string]interface{}, err error)

// NewMilestoneHandler builds the "milestone" node handler: "create_or_update"
// (default) or "mark_complete", producing action_results[] describing
// effects (carried in output_state by the invoker).
func NewMilestoneHandler(registry *idempotency.Registry, invoker DeterministicToolInvoker) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		operation, _ := req.Config["operation"].(string)

		cfg := tooling.Config{
			NodeType:       "milestone",
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
				return contracts.ValidateArtifactPayload("milestone", output)
			},
			nil,
		)
		if err != nil {
			return Result{}, err
		}

		return Result{OutputState: tooling.MergeOutcomeIntoOutput(outcome), RoutingState: outcome.RoutingState}, nil
	}
}
