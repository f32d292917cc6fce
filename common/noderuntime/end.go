package noderuntime

import "context"

// EndHandler is terminal: per spec.md §4.8 it emits terminate_run=true by
// default (the run-loop may override this for a sub-flowchart's internal
// end node, which terminates only that sub-run).
func EndHandler(ctx context.Context, req Request) (Result, error) {
	output := map[string]interface{}{
		"node_type":     "end",
		"terminate_run": true,
	}
	return Result{
		OutputState:  output,
		RoutingState: map[string]interface{}{},
		TerminateRun: true,
	}, nil
}
