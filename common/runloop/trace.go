package runloop

// TraceEntry is one node's contribution to a run's aggregated trace.
type TraceEntry struct {
	NodeID         string                 `json:"node_id"`
	ExecutionIndex int                    `json:"execution_index"`
	OutputState    map[string]interface{} `json:"output_state"`
	RoutingState   map[string]interface{} `json:"routing_state"`
	DegradedStatus bool                   `json:"degraded_status"`
	DegradedReason string                 `json:"degraded_reason,omitempty"`
}

// WarningEvent is one entry in the timeline of flowchart_warning events.
type WarningEvent struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

// Trace is the aggregated response for the trace(run_id, ...) boundary
// operation (spec §4.9 step 6 / §6).
type Trace struct {
	NodeTrace     []TraceEntry   `json:"node_trace"`
	ToolTrace     []TraceEntry   `json:"tool_trace"`
	ArtifactTrace []ArtifactRecord `json:"artifact_trace"`
	Timeline      []WarningEvent `json:"timeline"`
}

// BuildTrace aggregates node runs into a Trace. degradedOnly drops
// non-degraded records, and a positive limit caps node_trace. There is no
// filter by request id.
func BuildTrace(records []NodeRunRecord, artifacts []ArtifactRecord, degradedOnly bool, limit int) Trace {
	var trace Trace
	for _, rec := range records {
		if degradedOnly && !rec.DegradedStatus {
			continue
		}
		entry := TraceEntry{
			NodeID:         rec.NodeID,
			ExecutionIndex: rec.ExecutionIndex,
			OutputState:    rec.OutputState,
			RoutingState:   rec.RoutingState,
			DegradedStatus: rec.DegradedStatus,
			DegradedReason: rec.DegradedReason,
		}
		trace.NodeTrace = append(trace.NodeTrace, entry)
		if _, hasToolOutcome := rec.OutputState["deterministic_tooling"]; hasToolOutcome {
			trace.ToolTrace = append(trace.ToolTrace, entry)
		}
		if rec.DegradedStatus {
			trace.Timeline = append(trace.Timeline, WarningEvent{NodeID: rec.NodeID, Reason: rec.DegradedReason})
		}
		if limit > 0 && len(trace.NodeTrace) >= limit {
			break
		}
	}
	trace.ArtifactTrace = artifacts
	return trace
}
