// Package router implements the Execution Router (C5): selection of the
// concrete ExecutionProvider from runtime settings, with coercion of unknown
// provider names to the kubernetes default. Adapted from
// cmd/workflow-runner/coordinator/router.go's StreamRouter pattern (registry +
// coercion-to-default), generalized from stream-name selection to provider
// selection.
package router

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/common/providers"
)

// defaultProvider is the coercion target for any unrecognized provider name.
const defaultProvider = "kubernetes"

// Router holds the registered provider variants and the runtime selection.
type Router struct {
	registry map[string]providers.ExecutionProvider

	// Provider is the configured selection, already coerced.
	Provider            string
	WorkspaceIdentityKey string
}

// New builds a Router from runtime settings. An unrecognized provider name
// is coerced to "kubernetes".
func New(providerSetting, workspaceIdentityKey string, workspaceExec, k8sExec providers.ExecutionProvider) *Router {
	r := &Router{
		registry:             make(map[string]providers.ExecutionProvider, 2),
		WorkspaceIdentityKey: workspaceIdentityKey,
	}
	if workspaceExec != nil {
		r.registry["workspace"] = workspaceExec
	}
	if k8sExec != nil {
		r.registry["kubernetes"] = k8sExec
	}

	r.Provider = coerce(providerSetting)
	return r
}

func coerce(provider string) string {
	switch provider {
	case "workspace", "kubernetes":
		return provider
	default:
		return defaultProvider
	}
}

// RouteRequest stamps workspace_identity onto req and returns the annotated
// copy. ExecutionRequest carries no selected_provider or dispatch_status
// field, so neither is set here; ExecuteRouted records selected_provider on
// the result metadata, and the provider sets dispatch_status.
func (r *Router) RouteRequest(req providers.ExecutionRequest) providers.ExecutionRequest {
	req.WorkspaceIdentity = r.WorkspaceIdentityKey
	return req
}

// ExecuteRouted delegates to the chosen provider variant.
func (r *Router) ExecuteRouted(ctx context.Context, req providers.ExecutionRequest, cb providers.Callback) (providers.ExecutionResult, error) {
	routed := r.RouteRequest(req)

	provider, ok := r.registry[r.Provider]
	if !ok {
		return providers.ExecutionResult{}, fmt.Errorf("router: no execution provider registered for %q", r.Provider)
	}

	result, err := provider.Execute(ctx, routed, cb)
	result.Metadata.SelectedProvider = r.Provider
	if result.Metadata.FinalProvider == "" {
		result.Metadata.FinalProvider = r.Provider
	}
	return result, err
}

// Cancel asks the currently selected provider to cancel req's execution.
func (r *Router) Cancel(ctx context.Context, req providers.ExecutionRequest, graceSeconds int, forceKill bool) error {
	provider, ok := r.registry[r.Provider]
	if !ok {
		return fmt.Errorf("router: no execution provider registered for %q", r.Provider)
	}
	return provider.Cancel(ctx, req, graceSeconds, forceKill)
}
