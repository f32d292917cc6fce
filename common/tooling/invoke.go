// Package tooling implements the deterministic-tooling framework (§4.3): a
// retry/fallback envelope around special-node handlers (decision/memory/
// milestone/plan) that emits a tool trace and typed success/warning outcomes
// instead of raising on recoverable errors (§9: "exceptions for control flow
// are re-expressed as result types").
package tooling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/orchestrator/common/idempotency"
)

// ErrToolInvocationIdempotency is returned when an invocation's idempotency
// key was already registered. The invoke helpers also return the last
// attempt's error when no fallback is configured, or the fallback's error
// when the fallback fails.
var ErrToolInvocationIdempotency = errors.New("tool_invocation_idempotency_error")

// defaultOperations maps node type to its default operation.
var defaultOperations = map[string]string{
	"decision":  "evaluate",
	"memory":    "add",
	"milestone": "create_or_update",
	"plan":      "create_or_update_plan",
}

// knownOperations maps node type to the set of recognized alternate
// operations, used only to decide whether an unknown operation should fall
// back to the type's default.
var knownOperations = map[string]map[string]bool{
	"decision":  {"evaluate": true},
	"memory":    {"add": true, "retrieve": true, "delete": true},
	"milestone": {"create_or_update": true, "mark_complete": true},
	"plan":      {"create_or_update_plan": true, "complete_plan_item": true},
}

// ResolveScaffold returns the "deterministic.<type>/<operation>" tool name,
// coercing unrecognized operations to the type's default.
func ResolveScaffold(nodeType, operation string) string {
	ops, known := knownOperations[nodeType]
	if operation == "" || !known || !ops[operation] {
		operation = defaultOperations[nodeType]
	}
	return fmt.Sprintf("deterministic.%s/%s", nodeType, operation)
}

// CallTrace records one invoke() attempt.
type CallTrace struct {
	Attempt int    `json:"attempt"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Outcome is the result type C3 hands back instead of raising — it never
// carries a Go error for recoverable failures; ExecutionStatus/Warnings
// communicate degraded results.
type Outcome struct {
	ExecutionStatus string                 `json:"execution_status"` // "success" | "success_with_warning"
	AttemptCount    int                    `json:"attempt_count"`
	Calls           []CallTrace            `json:"calls"`
	RequestID       string                 `json:"request_id"`
	CorrelationID   string                 `json:"correlation_id"`
	ToolName        string                 `json:"tool_name"`
	Operation       string                 `json:"operation"`
	FallbackUsed    bool                   `json:"fallback_used"`
	Warnings        []string               `json:"warnings,omitempty"`
	OutputState     map[string]interface{} `json:"-"`
	RoutingState    map[string]interface{} `json:"-"`
}

// Config configures one InvokeDeterministicTool call.
type Config struct {
	NodeType       string
	Operation      string
	IdempotencyKey string // optional; if set, must be accepted by Registry
	MaxAttempts    int    // default 1
	CorrelationID  string
	Registry       *idempotency.Registry // defaults to idempotency.Default
}

// Invoke is the shape of a node handler's business logic: it returns
// (output_state, routing_state) or an error on failure.
type Invoke func(attempt int) (map[string]interface{}, map[string]interface{}, error)

// Validate optionally checks an attempt's result before it's accepted.
type Validate func(output map[string]interface{}, routing map[string]interface{}) error

// FallbackBuilder is called once, with the last error, after every attempt
// is exhausted; it may produce a degraded-but-successful result.
type FallbackBuilder func(lastErr error) (output map[string]interface{}, routing map[string]interface{}, warning string, err error)

// InvokeDeterministicTool wraps invoke with retry, validation, and fallback
// per §4.3.
func InvokeDeterministicTool(cfg Config, invoke Invoke, validate Validate, fallback FallbackBuilder) (Outcome, error) {
	if cfg.IdempotencyKey != "" {
		registry := cfg.Registry
		if registry == nil {
			registry = idempotency.Default
		}
		if !registry.Register(cfg.IdempotencyKey) {
			return Outcome{}, fmt.Errorf("%w: key %q already dispatched", ErrToolInvocationIdempotency, cfg.IdempotencyKey)
		}
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	toolName := ResolveScaffold(cfg.NodeType, cfg.Operation)
	operation := cfg.Operation
	if operation == "" {
		operation = defaultOperations[cfg.NodeType]
	}

	var calls []CallTrace
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		output, routing, err := invoke(attempt)
		if err == nil && validate != nil {
			err = validate(output, routing)
		}
		if err == nil {
			calls = append(calls, CallTrace{Attempt: attempt, Status: "success"})
			return Outcome{
				ExecutionStatus: "success",
				AttemptCount:    attempt,
				Calls:           calls,
				RequestID:       uuid.NewString(),
				CorrelationID:   cfg.CorrelationID,
				ToolName:        toolName,
				Operation:       operation,
				OutputState:     output,
				RoutingState:    routing,
			}, nil
		}
		lastErr = err
		calls = append(calls, CallTrace{Attempt: attempt, Status: "failed", Reason: err.Error()})
	}

	if fallback == nil {
		return Outcome{}, lastErr
	}

	output, routing, warning, err := fallback(lastErr)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		ExecutionStatus: "success_with_warning",
		AttemptCount:    maxAttempts,
		Calls:           calls,
		RequestID:       uuid.NewString(),
		CorrelationID:   cfg.CorrelationID,
		ToolName:        toolName,
		Operation:       operation,
		FallbackUsed:    true,
		OutputState:     output,
		RoutingState:    routing,
	}
	if warning != "" {
		outcome.Warnings = append(outcome.Warnings, warning)
	}
	return outcome, nil
}

// MergeOutcomeIntoOutput returns a copy of outcome.OutputState with the
// Outcome's own trace fields nested under "deterministic_tooling", per
// spec.md §4.3: "merged into output_state under key deterministic_tooling".
func MergeOutcomeIntoOutput(outcome Outcome) map[string]interface{} {
	merged := make(map[string]interface{}, len(outcome.OutputState)+1)
	for k, v := range outcome.OutputState {
		merged[k] = v
	}
	merged["deterministic_tooling"] = map[string]interface{}{
		"execution_status": outcome.ExecutionStatus,
		"attempt_count":    outcome.AttemptCount,
		"calls":            outcome.Calls,
		"request_id":       outcome.RequestID,
		"correlation_id":   outcome.CorrelationID,
		"tool_name":        outcome.ToolName,
		"operation":        outcome.Operation,
		"fallback_used":    outcome.FallbackUsed,
		"warnings":         outcome.Warnings,
	}
	return merged
}

// nowISO is kept local to avoid every call site importing time just for
// this; currently unused by Outcome (callers stamp timestamps at the
// persistence boundary) but retained for handlers that want a quick
// timestamp when building call traces manually.
func nowISO() string { return time.Now().UTC().Format(time.RFC3339Nano) }
