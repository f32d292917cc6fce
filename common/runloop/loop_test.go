package runloop

import (
	"context"
	"testing"

	"github.com/lyzr/orchestrator/common/compiler"
	"github.com/lyzr/orchestrator/common/noderuntime"
)

type recordingPersister struct {
	runs      []NodeRunRecord
	artifacts []ArtifactRecord
}

func (p *recordingPersister) SaveNodeRun(ctx context.Context, rec NodeRunRecord) error {
	p.runs = append(p.runs, rec)
	return nil
}

func (p *recordingPersister) SaveArtifact(ctx context.Context, art ArtifactRecord) error {
	p.artifacts = append(p.artifacts, art)
	return nil
}

type recordingEmitter struct {
	visited  []string
	terminal string
}

func (e *recordingEmitter) EmitNodeVisited(ctx context.Context, runID string, rec NodeRunRecord) {
	e.visited = append(e.visited, rec.NodeID)
}

func (e *recordingEmitter) EmitRunTerminal(ctx context.Context, runID, status string) {
	e.terminal = status
}

func decisionHandlerRoutingTo(routeKey string) noderuntime.Handler {
	return func(ctx context.Context, req noderuntime.Request) (noderuntime.Result, error) {
		return noderuntime.Result{
			OutputState:  map[string]interface{}{"node_type": "decision"},
			RoutingState: map[string]interface{}{"route_key": routeKey},
		}, nil
	}
}

func TestLoop_SequentialRunVisitsAllNodesToEnd(t *testing.T) {
	graph, err := compiler.Compile(&compiler.FlowchartSchema{
		Nodes: []compiler.FlowchartNode{
			{ID: "s", Type: compiler.NodeTypeStart},
			{ID: "t1", Type: compiler.NodeTypeTask},
			{ID: "e", Type: compiler.NodeTypeEnd},
		},
		Edges: []compiler.FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: compiler.EdgeModeSolid},
			{ID: "e2", SourceNodeID: "t1", TargetNodeID: "e", EdgeMode: compiler.EdgeModeSolid},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	registry := noderuntime.NewRegistry()
	registry.Register("start", noderuntime.StartHandler)
	registry.Register("task", func(ctx context.Context, req noderuntime.Request) (noderuntime.Result, error) {
		return noderuntime.Result{OutputState: map[string]interface{}{"node_type": "task"}, RoutingState: map[string]interface{}{}}, nil
	})
	registry.Register("end", noderuntime.EndHandler)

	persister := &recordingPersister{}
	emitter := &recordingEmitter{}
	loop := NewLoop(graph, registry, NewInMemoryStateStore(), persister, emitter)

	status, err := loop.Run(context.Background(), "R1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %q", status)
	}
	if len(persister.runs) != 3 {
		t.Fatalf("expected 3 node runs persisted, got %d", len(persister.runs))
	}
	if emitter.terminal != StatusSucceeded {
		t.Fatalf("expected terminal event succeeded, got %q", emitter.terminal)
	}
}

func TestLoop_DecisionRouteKeyFollowsOnlyMatchingEdge(t *testing.T) {
	graph, err := compiler.Compile(&compiler.FlowchartSchema{
		Nodes: []compiler.FlowchartNode{
			{ID: "s", Type: compiler.NodeTypeStart},
			{ID: "d", Type: compiler.NodeTypeDecision},
			{ID: "approved", Type: compiler.NodeTypeEnd},
			{ID: "rejected", Type: compiler.NodeTypeEnd},
		},
		Edges: []compiler.FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "d", EdgeMode: compiler.EdgeModeSolid},
			{ID: "e2", SourceNodeID: "d", TargetNodeID: "approved", EdgeMode: compiler.EdgeModeSolid, ConditionKey: "approved"},
			{ID: "e3", SourceNodeID: "d", TargetNodeID: "rejected", EdgeMode: compiler.EdgeModeSolid, ConditionKey: "rejected"},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	registry := noderuntime.NewRegistry()
	registry.Register("start", noderuntime.StartHandler)
	registry.Register("decision", decisionHandlerRoutingTo("approved"))
	registry.Register("end", noderuntime.EndHandler)

	persister := &recordingPersister{}
	emitter := &recordingEmitter{}
	loop := NewLoop(graph, registry, NewInMemoryStateStore(), persister, emitter)

	_, err = loop.Run(context.Background(), "R2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	visitedRejected := false
	visitedApproved := false
	for _, v := range emitter.visited {
		if v == "rejected" {
			visitedRejected = true
		}
		if v == "approved" {
			visitedApproved = true
		}
	}
	if visitedRejected {
		t.Fatal("rejected branch should not have been visited")
	}
	if !visitedApproved {
		t.Fatal("approved branch should have been visited")
	}
}

func TestLoop_PausingStateStopsTraversalBeforeNextNode(t *testing.T) {
	graph, err := compiler.Compile(&compiler.FlowchartSchema{
		Nodes: []compiler.FlowchartNode{
			{ID: "s", Type: compiler.NodeTypeStart},
			{ID: "t1", Type: compiler.NodeTypeTask},
			{ID: "e", Type: compiler.NodeTypeEnd},
		},
		Edges: []compiler.FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: compiler.EdgeModeSolid},
			{ID: "e2", SourceNodeID: "t1", TargetNodeID: "e", EdgeMode: compiler.EdgeModeSolid},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	registry := noderuntime.NewRegistry()
	registry.Register("start", noderuntime.StartHandler)
	registry.Register("task", func(ctx context.Context, req noderuntime.Request) (noderuntime.Result, error) {
		return noderuntime.Result{OutputState: map[string]interface{}{}, RoutingState: map[string]interface{}{}}, nil
	})
	registry.Register("end", noderuntime.EndHandler)

	states := NewInMemoryStateStore()
	states.Set("R3", StatusPausing)
	persister := &recordingPersister{}
	emitter := &recordingEmitter{}
	loop := NewLoop(graph, registry, states, persister, emitter)

	status, err := loop.Run(context.Background(), "R3")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if status != StatusPaused {
		t.Fatalf("expected paused, got %q", status)
	}
	if len(persister.runs) != 0 {
		t.Fatalf("expected no nodes visited before pause takes effect, got %d", len(persister.runs))
	}
}

func TestRouteNext_FallsBackToAllSolidEdgesWhenNoRoutingSignal(t *testing.T) {
	graph, err := compiler.Compile(&compiler.FlowchartSchema{
		Nodes: []compiler.FlowchartNode{
			{ID: "s", Type: compiler.NodeTypeStart},
			{ID: "a", Type: compiler.NodeTypeEnd},
			{ID: "b", Type: compiler.NodeTypeEnd},
		},
		Edges: []compiler.FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "a", EdgeMode: compiler.EdgeModeSolid},
			{ID: "e2", SourceNodeID: "s", TargetNodeID: "b", EdgeMode: compiler.EdgeModeSolid},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	next := RouteNext(graph.Nodes["s"], map[string]interface{}{})
	if len(next) != 2 {
		t.Fatalf("expected both solid edges followed, got %v", next)
	}
}

func TestRouteNext_MatchedConnectorIDsFiltersEdges(t *testing.T) {
	graph, err := compiler.Compile(&compiler.FlowchartSchema{
		Nodes: []compiler.FlowchartNode{
			{ID: "d", Type: compiler.NodeTypeDecision},
			{ID: "a", Type: compiler.NodeTypeEnd},
			{ID: "b", Type: compiler.NodeTypeEnd},
			{ID: "s", Type: compiler.NodeTypeStart},
		},
		Edges: []compiler.FlowchartEdge{
			{ID: "s1", SourceNodeID: "s", TargetNodeID: "d", EdgeMode: compiler.EdgeModeSolid},
			{ID: "c1", SourceNodeID: "d", TargetNodeID: "a", EdgeMode: compiler.EdgeModeSolid, ConditionKey: "x"},
			{ID: "c2", SourceNodeID: "d", TargetNodeID: "b", EdgeMode: compiler.EdgeModeSolid, ConditionKey: "y"},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	next := RouteNext(graph.Nodes["d"], map[string]interface{}{
		"matched_connector_ids": []interface{}{"c1"},
	})
	if len(next) != 1 || next[0] != "a" {
		t.Fatalf("expected only node 'a' via connector c1, got %v", next)
	}
}
