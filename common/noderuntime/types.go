// Package noderuntime implements the Node Runtime (C8): a handler registry
// keyed by node-type tag, one handler per flowchart node type, each
// producing an (output_state, routing_state) pair. Grounded on
// cmd/workflow-runner/coordinator/coordinator.go's per-type branching
// (processWorkerNode/handleAbsorberNode) and operators/control_flow.go's
// loop/branch operators, generalized from the teacher's generic worker-task
// vocabulary (http/agent/hitl/...) to the flowchart vocabulary
// (start/end/task/decision/memory/milestone/plan/rag/flowchart).
package noderuntime

import "context"

// Request is the input to a node handler: the node's resolved
// configuration, its upstream context (prior node outputs, keyed by node
// id), and identifying run/node metadata.
type Request struct {
	RunID          string
	NodeID         string
	ExecutionIndex int
	NodeType       string
	Config         map[string]interface{}
	UpstreamOutputs map[string]map[string]interface{} // node id -> that node's output_state
}

// Result is what every handler returns: the node's own output_state plus
// whatever routing_state decision/branch logic derived for it, and the
// degraded-marker inputs a handler observed along the way.
type Result struct {
	OutputState  map[string]interface{}
	RoutingState map[string]interface{}

	FallbackAttempted        bool
	DispatchUncertain        bool
	CLIFallbackUsed          bool
	DeterministicFallbackUsed bool
	DeterministicSuccessWithWarning bool
	FallbackReason           string
	APIFailureCategory       string

	TerminateRun bool
}

// Handler executes one node type.
type Handler func(ctx context.Context, req Request) (Result, error)
