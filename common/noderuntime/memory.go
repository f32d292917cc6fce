package noderuntime

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/lyzr/orchestrator/common/tooling"
)

// MemoryToolInvoker performs the actual memory-tool call (e.g. the
// llmctl-mcp deterministic writer) for a given mode. Implementations live
// outside this package (they talk to whatever memory backend is deployed);
// this handler only orchestrates retry/fallback around the call.
type MemoryToolInvoker func(ctx context.Context, mode string, req Request) (output, routing map[string]interface{}, err error)

// NewMemoryHandler builds the "memory" node handler. Per spec.md §4.8:
// two modes, "deterministic" and "llm_guided"; the primary mode (config
// key "mode", default "deterministic") is retried up to retry_count times;
// on exhaustion, if fallback_enabled, the other mode is attempted and a
// success there yields execution_status="success_with_warning",
// fallback_used=true, failed_mode set, and a classified fallback_reason.
// Fallback disabled rethrows the primary error; a failing fallback raises
// fallback_runtime_error. For "retrieve", an empty primary result counts as
// primary_empty_result.
func NewMemoryHandler(registry *idempotency.Registry, invoker MemoryToolInvoker) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		primaryMode, _ := req.Config["mode"].(string)
		if primaryMode == "" {
			primaryMode = "deterministic"
		}
		fallbackEnabled, _ := req.Config["fallback_enabled"].(bool)
		retryCount := 0
		if rc, ok := req.Config["retry_count"].(int); ok && rc > 0 {
			retryCount = rc
		}
		operation, _ := req.Config["operation"].(string)

		secondaryMode := "llm_guided"
		if primaryMode == "llm_guided" {
			secondaryMode = "deterministic"
		}

		var primaryFailureReason string

		cfg := tooling.Config{
			NodeType:       "memory",
			Operation:      operation,
			IdempotencyKey: contracts.NodeRunIdempotencyKey(req.RunID, req.NodeID, req.ExecutionIndex),
			MaxAttempts:    retryCount + 1,
			Registry:       registry,
		}

		outcome, err := tooling.InvokeDeterministicTool(cfg,
			func(attempt int) (map[string]interface{}, map[string]interface{}, error) {
				output, routing, invokeErr := invoker(ctx, primaryMode, req)
				if invokeErr != nil {
					primaryFailureReason = "primary_runtime_error"
					return nil, nil, invokeErr
				}
				if operation == "retrieve" && isEmptyResult(output) {
					primaryFailureReason = "primary_empty_result"
					return nil, nil, fmt.Errorf("noderuntime: memory retrieve returned an empty result")
				}
				return output, routing, nil
			},
			nil,
			func(lastErr error) (map[string]interface{}, map[string]interface{}, string, error) {
				if !fallbackEnabled {
					return nil, nil, "", lastErr
				}
				output, routing, fallbackErr := invoker(ctx, secondaryMode, req)
				if fallbackErr != nil {
					return nil, nil, "", fmt.Errorf("fallback_runtime_error: %w", fallbackErr)
				}
				output = withKey(output, "failed_mode", primaryMode)
				return output, routing, primaryFailureReason, nil
			},
		)
		if err != nil {
			return Result{}, err
		}

		return Result{
			OutputState:                     tooling.MergeOutcomeIntoOutput(outcome),
			RoutingState:                    outcome.RoutingState,
			DeterministicFallbackUsed:       outcome.FallbackUsed,
			DeterministicSuccessWithWarning: outcome.ExecutionStatus == "success_with_warning",
			FallbackReason:                  firstOf(outcome.Warnings),
		}, nil
	}
}

func isEmptyResult(output map[string]interface{}) bool {
	if output == nil {
		return true
	}
	text, _ := output["text"].(string)
	results, hasResults := output["results"].([]interface{})
	return text == "" && (!hasResults || len(results) == 0)
}

func withKey(m map[string]interface{}, key string, value interface{}) map[string]interface{} {
	if m == nil {
		m = map[string]interface{}{}
	}
	m[key] = value
	return m
}

func firstOf(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	return warnings[0]
}
