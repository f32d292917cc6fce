// Package providers implements the two concrete ExecutionProvider variants
// (§4.4): WorkspaceExecutor (in-process) and KubernetesExecutor (Job-per-
// node). §9: "deep inheritance of provider classes is replaced by a single
// ExecutionProvider capability {execute(request, callback) -> result}
// implemented by two variants".
package providers

import "context"

// DispatchStatus enumerates run_metadata.dispatch_status values.
type DispatchStatus string

const (
	DispatchPending          DispatchStatus = "dispatch_pending"
	DispatchConfirmed        DispatchStatus = "dispatch_confirmed"
	DispatchFailed           DispatchStatus = "dispatch_failed"
	DispatchFallbackStarted  DispatchStatus = "dispatch_fallback_started"
)

// RunMetadata is the exact 11-key on-wire schema from §4.4/§6. Absent
// optional fields are represented as the zero value and are serialized as
// null by callers that marshal to JSON with explicit omitempty removed at
// the wire boundary (handled by the persistence/eventbus layers, not here).
type RunMetadata struct {
	SelectedProvider   string
	FinalProvider      string
	ProviderDispatchID string
	WorkspaceIdentity  string
	DispatchStatus     DispatchStatus
	FallbackAttempted  bool
	FallbackReason     string
	DispatchUncertain  bool
	APIFailureCategory string
	CLIFallbackUsed    bool
	CLIPreflightPassed *bool
}

// ExecutionRequest is the per-node dispatch request handed to a provider.
type ExecutionRequest struct {
	RunID             string
	NodeID            string
	ExecutionIndex    int
	ExecutionID       string // used to build the dispatch idempotency key
	WorkspaceIdentity string
	Payload           map[string]interface{}
	FallbackAttempted bool // prevents double-fallback at the router layer
}

// Callback is the user function a provider invokes to do the actual node
// work; it returns the node's raw output or an error.
type Callback func(ctx context.Context, req ExecutionRequest) (map[string]interface{}, error)

// ExecutionResult is what execute() returns.
type ExecutionResult struct {
	Status   string // "success" | "failed"
	Output   map[string]interface{}
	Metadata RunMetadata
	Err      error
}

// ExecutionProvider is the single capability both providers implement.
type ExecutionProvider interface {
	Execute(ctx context.Context, req ExecutionRequest, cb Callback) (ExecutionResult, error)
	Cancel(ctx context.Context, req ExecutionRequest, graceSeconds int, forceKill bool) error
}
