// Package compiler turns an authored flowchart graph (nodes + edges) into a
// validated Graph ready for run-loop traversal: dependency/dependent
// adjacency, terminal-node detection, and the exactly-one-start invariant.
package compiler

import "fmt"

// Flowchart node types (spec §3).
const (
	NodeTypeStart     = "start"
	NodeTypeEnd       = "end"
	NodeTypeTask      = "task"
	NodeTypeDecision  = "decision"
	NodeTypeMemory    = "memory"
	NodeTypeMilestone = "milestone"
	NodeTypePlan      = "plan"
	NodeTypeRAG       = "rag"
	NodeTypeFlowchart = "flowchart"
)

var validNodeTypes = map[string]bool{
	NodeTypeStart: true, NodeTypeEnd: true, NodeTypeTask: true,
	NodeTypeDecision: true, NodeTypeMemory: true, NodeTypeMilestone: true,
	NodeTypePlan: true, NodeTypeRAG: true, NodeTypeFlowchart: true,
}

// Edge modes (spec §3).
const (
	EdgeModeSolid  = "solid"
	EdgeModeDotted = "dotted"
)

// FlowchartNode is the authored vertex shape.
type FlowchartNode struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Config   map[string]interface{} `json:"config,omitempty"`
	RefID    string                 `json:"ref_id,omitempty"`
	ModelID  string                 `json:"model_id,omitempty"`
	Position map[string]float64     `json:"position,omitempty"`
}

// FlowchartEdge is the authored edge shape. ConditionKey is only meaningful
// when the source node is a decision node.
type FlowchartEdge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
	EdgeMode     string `json:"edge_mode"`
	ConditionKey string `json:"condition_key,omitempty"`
}

// FlowchartSchema is the authoring-time graph definition.
type FlowchartSchema struct {
	Nodes []FlowchartNode `json:"nodes"`
	Edges []FlowchartEdge `json:"edges"`
}

// GraphNode is a compiled vertex: the authored node plus adjacency computed
// from the edge list.
type GraphNode struct {
	FlowchartNode
	SolidDependencies  []string
	SolidDependents    []string
	DottedDependencies []string
	DottedDependents   []string
	OutgoingEdges      []FlowchartEdge
	WaitForAll         bool
	IsTerminal         bool
}

// Graph is the compiled, validated flowchart ready for run-loop traversal.
type Graph struct {
	Nodes   map[string]*GraphNode
	StartID string
}

// Compile validates schema and produces a Graph. Validation failures are
// validation_error per spec §7 — the caller surfaces them to the submitter
// without any state change.
func Compile(schema *FlowchartSchema) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*GraphNode, len(schema.Nodes))}

	for _, n := range schema.Nodes {
		if !validNodeTypes[n.Type] {
			return nil, fmt.Errorf("validation_error: unknown node type %q for node %s", n.Type, n.ID)
		}
		if _, dup := g.Nodes[n.ID]; dup {
			return nil, fmt.Errorf("validation_error: duplicate node id %s", n.ID)
		}
		g.Nodes[n.ID] = &GraphNode{FlowchartNode: n}
	}

	startCount := 0
	for _, n := range g.Nodes {
		if n.Type == NodeTypeStart {
			startCount++
			g.StartID = n.ID
		}
	}
	if startCount != 1 {
		return nil, fmt.Errorf("validation_error: flowchart must have exactly one start node, found %d", startCount)
	}

	for _, e := range schema.Edges {
		from, ok := g.Nodes[e.SourceNodeID]
		if !ok {
			return nil, fmt.Errorf("validation_error: edge references non-existent source node: %s", e.SourceNodeID)
		}
		to, ok := g.Nodes[e.TargetNodeID]
		if !ok {
			return nil, fmt.Errorf("validation_error: edge references non-existent target node: %s", e.TargetNodeID)
		}
		if e.ConditionKey != "" && from.Type != NodeTypeDecision {
			return nil, fmt.Errorf("validation_error: edge %s sets condition_key but source %s is not a decision node", e.ID, e.SourceNodeID)
		}
		mode := e.EdgeMode
		if mode != EdgeModeSolid && mode != EdgeModeDotted {
			return nil, fmt.Errorf("validation_error: edge %s has invalid edge_mode %q", e.ID, e.EdgeMode)
		}

		from.OutgoingEdges = append(from.OutgoingEdges, e)
		if mode == EdgeModeSolid {
			from.SolidDependents = append(from.SolidDependents, e.TargetNodeID)
			to.SolidDependencies = append(to.SolidDependencies, e.SourceNodeID)
		} else {
			from.DottedDependents = append(from.DottedDependents, e.TargetNodeID)
			to.DottedDependencies = append(to.DottedDependencies, e.SourceNodeID)
		}
	}

	for _, n := range g.Nodes {
		n.WaitForAll = len(n.SolidDependencies) > 1
		n.IsTerminal = len(n.OutgoingEdges) == 0
	}

	if err := validateNoOrphanCycles(g); err != nil {
		return nil, err
	}

	return g, nil
}

// validateNoOrphanCycles rejects cycles among solid edges that never pass
// through a decision node — those can only be authored intentionally as
// loop-backs gated by a condition_key, so any solid-only cycle with no
// decision node in it is unreachable by design and indicates a malformed
// graph rather than an intended loop.
func validateNoOrphanCycles(g *Graph) error {
	visited := make(map[string]bool)
	stack := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		visited[id] = true
		stack[id] = true
		node := g.Nodes[id]
		for _, next := range node.SolidDependents {
			if g.Nodes[next].Type == NodeTypeDecision {
				continue
			}
			if stack[next] {
				return fmt.Errorf("validation_error: solid-edge cycle through %s -> %s with no decision gate", id, next)
			}
			if !visited[next] {
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack[id] = false
		return nil
	}

	for id := range g.Nodes {
		if !visited[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// EntryNodes returns every node with no solid dependencies. Compile ensures
// exactly one start node but does not reject other nodes that lack solid
// incoming edges, so the result can hold more than the start node.
func EntryNodes(g *Graph) []*GraphNode {
	var entries []*GraphNode
	for _, n := range g.Nodes {
		if len(n.SolidDependencies) == 0 {
			entries = append(entries, n)
		}
	}
	return entries
}

// TerminalNodes returns nodes with no outgoing edges.
func TerminalNodes(g *Graph) []*GraphNode {
	var terminals []*GraphNode
	for _, n := range g.Nodes {
		if n.IsTerminal {
			terminals = append(terminals, n)
		}
	}
	return terminals
}
