package noderuntime

import "context"

// StartHandler is an identity passthrough: per spec.md §4.8, a start node
// always succeeds and carries no routing state of its own.
func StartHandler(ctx context.Context, req Request) (Result, error) {
	output := map[string]interface{}{
		"node_type":      "start",
		"input_context":  req.UpstreamOutputs,
		"output_state":   map[string]interface{}{},
	}
	return Result{OutputState: output, RoutingState: map[string]interface{}{}}, nil
}
