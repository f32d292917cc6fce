package eventbus

import (
	"context"

	"github.com/lyzr/orchestrator/common/runloop"
)

// RunEventEmitter implements runloop.EventEmitter (C9's seam into C10): one
// event per visited node, plus a terminal event when a run finishes,
// addressed to the run/flowchart/flowchart_run room scope (§4.9's "event
// emission", §4.10).
type RunEventEmitter struct {
	bus         *Bus
	flowchartOf func(runID string) string
}

// NewRunEventEmitter constructs a RunEventEmitter. flowchartOf resolves a
// run id to its owning flowchart id for room addressing; callers that don't
// need flowchart-scoped rooms may pass a func that always returns "".
func NewRunEventEmitter(bus *Bus, flowchartOf func(runID string) string) *RunEventEmitter {
	return &RunEventEmitter{bus: bus, flowchartOf: flowchartOf}
}

var _ runloop.EventEmitter = (*RunEventEmitter)(nil)

func (e *RunEventEmitter) EmitNodeVisited(ctx context.Context, runID string, rec runloop.NodeRunRecord) {
	rooms := TaskScopeRooms("", runID, e.flowchartOf(runID), runID, rec.NodeID)
	_, _ = e.bus.EmitContractEvent(ctx, BuildEnvelopeInput{
		EventType:  "flowchart:run_node:completed",
		EntityKind: "flowchart_run_node",
		EntityID:   rec.NodeID,
		RoomKeys:   rooms,
		Payload: map[string]interface{}{
			"run_id":          runID,
			"node_id":         rec.NodeID,
			"execution_index": rec.ExecutionIndex,
			"output_state":    rec.OutputState,
			"routing_state":   rec.RoutingState,
			"degraded_status": rec.DegradedStatus,
			"degraded_reason": rec.DegradedReason,
		},
	})
}

func (e *RunEventEmitter) EmitRunTerminal(ctx context.Context, runID, status string) {
	rooms := TaskScopeRooms("", runID, e.flowchartOf(runID), runID, "")
	_, _ = e.bus.EmitContractEvent(ctx, BuildEnvelopeInput{
		EventType:  "flowchart:run:" + status,
		EntityKind: "flowchart_run",
		EntityID:   runID,
		RoomKeys:   rooms,
		Payload: map[string]interface{}{
			"run_id": runID,
			"status": status,
		},
	})
}
