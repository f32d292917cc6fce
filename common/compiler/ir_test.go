package compiler

import "testing"

func TestCompile_SimpleSequential(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "t1", Type: NodeTypeTask},
			{ID: "e", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "t1", TargetNodeID: "e", EdgeMode: EdgeModeSolid},
		},
	}

	g, err := Compile(schema)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if g.StartID != "s" {
		t.Errorf("expected start id 's', got %q", g.StartID)
	}
	if !g.Nodes["e"].IsTerminal {
		t.Errorf("end node should be terminal")
	}
	if len(g.Nodes["t1"].SolidDependencies) != 1 || g.Nodes["t1"].SolidDependencies[0] != "s" {
		t.Errorf("t1 should depend on s, got %v", g.Nodes["t1"].SolidDependencies)
	}
}

func TestCompile_DottedEdgeCarriesContextOnly(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "mem", Type: NodeTypeMemory},
			{ID: "t1", Type: NodeTypeTask},
			{ID: "e", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "mem", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "mem", TargetNodeID: "t1", EdgeMode: EdgeModeDotted},
			{ID: "e3", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: EdgeModeSolid},
			{ID: "e4", SourceNodeID: "t1", TargetNodeID: "e", EdgeMode: EdgeModeSolid},
		},
	}

	g, err := Compile(schema)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(g.Nodes["t1"].SolidDependencies) != 1 {
		t.Errorf("t1 should have 1 solid dependency, got %v", g.Nodes["t1"].SolidDependencies)
	}
	if len(g.Nodes["t1"].DottedDependencies) != 1 || g.Nodes["t1"].DottedDependencies[0] != "mem" {
		t.Errorf("t1 should have dotted dependency on mem, got %v", g.Nodes["t1"].DottedDependencies)
	}
}

func TestCompile_JoinNodeWaitsForAllSolidDependencies(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "a", Type: NodeTypeTask},
			{ID: "b", Type: NodeTypeTask},
			{ID: "join", Type: NodeTypeTask},
			{ID: "e", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "a", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "s", TargetNodeID: "b", EdgeMode: EdgeModeSolid},
			{ID: "e3", SourceNodeID: "a", TargetNodeID: "join", EdgeMode: EdgeModeSolid},
			{ID: "e4", SourceNodeID: "b", TargetNodeID: "join", EdgeMode: EdgeModeSolid},
			{ID: "e5", SourceNodeID: "join", TargetNodeID: "e", EdgeMode: EdgeModeSolid},
		},
	}

	g, err := Compile(schema)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !g.Nodes["join"].WaitForAll {
		t.Errorf("join node should have WaitForAll=true")
	}
}

func TestCompile_DecisionConditionKeyEdges(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "d", Type: NodeTypeDecision},
			{ID: "a", Type: NodeTypeEnd},
			{ID: "b", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "d", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "d", TargetNodeID: "a", EdgeMode: EdgeModeSolid, ConditionKey: "approved"},
			{ID: "e3", SourceNodeID: "d", TargetNodeID: "b", EdgeMode: EdgeModeSolid, ConditionKey: "rejected"},
		},
	}

	g, err := Compile(schema)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(g.Nodes["d"].OutgoingEdges) != 2 {
		t.Errorf("decision node should have 2 outgoing edges")
	}
}

func TestCompile_RejectsConditionKeyOnNonDecisionSource(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "t1", Type: NodeTypeTask},
			{ID: "e", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "t1", TargetNodeID: "e", EdgeMode: EdgeModeSolid, ConditionKey: "x"},
		},
	}

	_, err := Compile(schema)
	if err == nil {
		t.Fatal("expected error for condition_key on non-decision source")
	}
}

func TestCompile_RejectsMissingOrMultipleStartNodes(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		schema := &FlowchartSchema{Nodes: []FlowchartNode{{ID: "e", Type: NodeTypeEnd}}}
		if _, err := Compile(schema); err == nil {
			t.Fatal("expected error for missing start node")
		}
	})
	t.Run("multiple", func(t *testing.T) {
		schema := &FlowchartSchema{
			Nodes: []FlowchartNode{
				{ID: "s1", Type: NodeTypeStart},
				{ID: "s2", Type: NodeTypeStart},
			},
		}
		if _, err := Compile(schema); err == nil {
			t.Fatal("expected error for multiple start nodes")
		}
	})
}

func TestCompile_RejectsEdgeToNonExistentNode(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{{ID: "s", Type: NodeTypeStart}},
		Edges: []FlowchartEdge{{ID: "e1", SourceNodeID: "s", TargetNodeID: "ghost", EdgeMode: EdgeModeSolid}},
	}
	if _, err := Compile(schema); err == nil {
		t.Fatal("expected error for edge to non-existent node")
	}
}

func TestCompile_RejectsUnknownNodeType(t *testing.T) {
	schema := &FlowchartSchema{Nodes: []FlowchartNode{{ID: "x", Type: "bogus"}}}
	if _, err := Compile(schema); err == nil {
		t.Fatal("expected error for unknown node type")
	}
}

func TestCompile_AllowsDecisionGatedLoopBack(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "t1", Type: NodeTypeTask},
			{ID: "d", Type: NodeTypeDecision},
			{ID: "e", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "t1", TargetNodeID: "d", EdgeMode: EdgeModeSolid},
			{ID: "e3", SourceNodeID: "d", TargetNodeID: "t1", EdgeMode: EdgeModeSolid, ConditionKey: "retry"},
			{ID: "e4", SourceNodeID: "d", TargetNodeID: "e", EdgeMode: EdgeModeSolid, ConditionKey: "done"},
		},
	}
	if _, err := Compile(schema); err != nil {
		t.Fatalf("decision-gated loop-back should be allowed, got: %v", err)
	}
}

func TestEntryAndTerminalNodes(t *testing.T) {
	schema := &FlowchartSchema{
		Nodes: []FlowchartNode{
			{ID: "s", Type: NodeTypeStart},
			{ID: "t1", Type: NodeTypeTask},
			{ID: "e", Type: NodeTypeEnd},
		},
		Edges: []FlowchartEdge{
			{ID: "e1", SourceNodeID: "s", TargetNodeID: "t1", EdgeMode: EdgeModeSolid},
			{ID: "e2", SourceNodeID: "t1", TargetNodeID: "e", EdgeMode: EdgeModeSolid},
		},
	}
	g, err := Compile(schema)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	entries := EntryNodes(g)
	if len(entries) != 1 || entries[0].ID != "s" {
		t.Errorf("expected single entry node 's', got %v", entries)
	}
	terminals := TerminalNodes(g)
	if len(terminals) != 1 || terminals[0].ID != "e" {
		t.Errorf("expected single terminal node 'e', got %v", terminals)
	}
}
