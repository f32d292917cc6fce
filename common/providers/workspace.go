package providers

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/idempotency"
)

// WorkspaceExecutor executes the callback in-process after recording a
// dispatch key. Duplicate dispatch keys return status="failed" without
// invoking the callback a second time.
//
// Cancellation is cooperative (§9 open question b): each in-flight
// execution carries an atomic.Bool that Execute checks once, just before
// invoking the callback; a Cancel after the callback has started does not
// interrupt it, and there is no hard kill boundary for an in-process
// goroutine.
type WorkspaceExecutor struct {
	registry *idempotency.Registry
	cancels  map[string]*atomic.Bool
}

// NewWorkspaceExecutor creates a WorkspaceExecutor backed by registry (or
// idempotency.Default when nil).
func NewWorkspaceExecutor(registry *idempotency.Registry) *WorkspaceExecutor {
	if registry == nil {
		registry = idempotency.Default
	}
	return &WorkspaceExecutor{registry: registry, cancels: make(map[string]*atomic.Bool)}
}

func (w *WorkspaceExecutor) dispatchKey(req ExecutionRequest) string {
	return contracts.DispatchIdempotencyKey("workspace", req.ExecutionID)
}

// Execute implements ExecutionProvider.
func (w *WorkspaceExecutor) Execute(ctx context.Context, req ExecutionRequest, cb Callback) (ExecutionResult, error) {
	key := w.dispatchKey(req)

	meta := RunMetadata{
		SelectedProvider:   "workspace",
		FinalProvider:      "workspace",
		WorkspaceIdentity:  req.WorkspaceIdentity,
		ProviderDispatchID: fmt.Sprintf("workspace:workspace-%s", req.ExecutionID),
	}

	if !w.registry.Register(key) {
		meta.DispatchStatus = DispatchFailed
		return ExecutionResult{Status: "failed", Metadata: meta}, nil
	}

	cancelFlag := &atomic.Bool{}
	w.cancels[key] = cancelFlag

	meta.DispatchStatus = DispatchConfirmed

	select {
	case <-ctx.Done():
		meta.DispatchStatus = DispatchFailed
		return ExecutionResult{Status: "failed", Metadata: meta, Err: ctx.Err()}, nil
	default:
	}

	if cancelFlag.Load() {
		meta.DispatchStatus = DispatchFailed
		return ExecutionResult{Status: "failed", Metadata: meta}, nil
	}

	output, err := cb(ctx, req)
	if err != nil {
		return ExecutionResult{Status: "failed", Metadata: meta, Err: err}, nil
	}

	return ExecutionResult{Status: "success", Output: output, Metadata: meta}, nil
}

// Cancel sets the cooperative abort flag for an in-flight execution, if one
// is tracked for this request's dispatch key. graceSeconds/forceKill are
// accepted for interface symmetry with KubernetesExecutor but unused:
// workspace cancellation is always best-effort cooperative.
func (w *WorkspaceExecutor) Cancel(_ context.Context, req ExecutionRequest, _ int, _ bool) error {
	key := w.dispatchKey(req)
	if flag, ok := w.cancels[key]; ok {
		flag.Store(true)
	}
	return nil
}
