package runloop

import "testing"

func TestBuildTrace_DegradedOnlyFiltersCleanNodes(t *testing.T) {
	records := []NodeRunRecord{
		{NodeID: "a", DegradedStatus: false},
		{NodeID: "b", DegradedStatus: true, DegradedReason: "success_with_warning"},
	}

	trace := BuildTrace(records, nil, true, 0)
	if len(trace.NodeTrace) != 1 || trace.NodeTrace[0].NodeID != "b" {
		t.Fatalf("expected only degraded node 'b', got %v", trace.NodeTrace)
	}
	if len(trace.Timeline) != 1 || trace.Timeline[0].Reason != "success_with_warning" {
		t.Fatalf("expected one timeline warning, got %v", trace.Timeline)
	}
}

func TestBuildTrace_ToolTraceOnlyIncludesDeterministicToolingNodes(t *testing.T) {
	records := []NodeRunRecord{
		{NodeID: "a", OutputState: map[string]interface{}{"node_type": "task"}},
		{NodeID: "b", OutputState: map[string]interface{}{"deterministic_tooling": map[string]interface{}{}}},
	}

	trace := BuildTrace(records, nil, false, 0)
	if len(trace.NodeTrace) != 2 {
		t.Fatalf("expected both nodes in node_trace, got %d", len(trace.NodeTrace))
	}
	if len(trace.ToolTrace) != 1 || trace.ToolTrace[0].NodeID != "b" {
		t.Fatalf("expected only node 'b' in tool_trace, got %v", trace.ToolTrace)
	}
}

func TestBuildTrace_LimitCapsNodeTrace(t *testing.T) {
	records := []NodeRunRecord{{NodeID: "a"}, {NodeID: "b"}, {NodeID: "c"}}

	trace := BuildTrace(records, nil, false, 2)
	if len(trace.NodeTrace) != 2 {
		t.Fatalf("expected trace capped at 2, got %d", len(trace.NodeTrace))
	}
}
