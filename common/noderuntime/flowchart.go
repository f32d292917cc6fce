package noderuntime

import "context"

// SubflowRunner recursively runs a sub-flowchart to completion and returns
// its isolated terminal output — the run loop (C9) owns run creation,
// RunNode isolation, and persistence; this handler only delegates to it.
type SubflowRunner func(ctx context.Context, subFlowchartID string, req Request) (map[string]interface{}, error)

// NewFlowchartHandler builds the "flowchart" node handler: a recursive
// invocation of a sub-flowchart that isolates its own RunNodes (spec.md
// §4.8).
func NewFlowchartHandler(runner SubflowRunner) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		subFlowchartID, _ := req.Config["flowchart_id"].(string)

		output, err := runner(ctx, subFlowchartID, req)
		if err != nil {
			return Result{}, err
		}
		if output == nil {
			output = map[string]interface{}{}
		}
		output["node_type"] = "flowchart"
		output["sub_flowchart_id"] = subFlowchartID

		return Result{OutputState: output, RoutingState: map[string]interface{}{}}, nil
	}
}
