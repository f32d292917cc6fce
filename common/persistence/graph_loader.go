package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lyzr/orchestrator/common/compiler"
)

// LoadSchema reads a flowchart's nodes and edges and assembles the
// authoring-time compiler.FlowchartSchema the C9 compiler expects.
func LoadSchema(ctx context.Context, repo *FlowchartRepository, flowchartID uuid.UUID) (*compiler.FlowchartSchema, error) {
	nodes, err := repo.ListNodes(ctx, flowchartID)
	if err != nil {
		return nil, fmt.Errorf("persistence: loading nodes for flowchart %s: %w", flowchartID, err)
	}
	edges, err := repo.ListEdges(ctx, flowchartID)
	if err != nil {
		return nil, fmt.Errorf("persistence: loading edges for flowchart %s: %w", flowchartID, err)
	}

	schema := &compiler.FlowchartSchema{
		Nodes: make([]compiler.FlowchartNode, 0, len(nodes)),
		Edges: make([]compiler.FlowchartEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		node := compiler.FlowchartNode{
			ID:     n.NodeID.String(),
			Type:   string(n.NodeType),
			Config: n.Config,
		}
		if n.RefID != nil {
			node.RefID = n.RefID.String()
		}
		if n.ModelID != nil {
			node.ModelID = *n.ModelID
		}
		if n.PositionX != nil && n.PositionY != nil {
			node.Position = map[string]float64{"x": *n.PositionX, "y": *n.PositionY}
		}
		schema.Nodes = append(schema.Nodes, node)
	}
	for _, e := range edges {
		edge := compiler.FlowchartEdge{
			ID:           e.EdgeID.String(),
			SourceNodeID: e.SourceNodeID.String(),
			TargetNodeID: e.TargetNodeID.String(),
			EdgeMode:     string(e.EdgeMode),
		}
		if e.ConditionKey != nil {
			edge.ConditionKey = *e.ConditionKey
		}
		schema.Edges = append(schema.Edges, edge)
	}
	return schema, nil
}
