package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// FlowchartRepository handles database operations for flowcharts and their
// nodes/edges (§3 Flowchart/FlowchartNode/FlowchartEdge), grounded on
// common/repository.RunRepository's Create/GetByID/List method shape.
type FlowchartRepository struct {
	sess *Session
}

func NewFlowchartRepository(sess *Session) *FlowchartRepository {
	return &FlowchartRepository{sess: sess}
}

// Create inserts a new flowchart.
func (r *FlowchartRepository) Create(ctx context.Context, f *Flowchart) error {
	query := `
		INSERT INTO flowchart (flowchart_id, name, owner_id, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if err := r.sess.Exec(ctx, query, f.FlowchartID, f.Name, f.OwnerID, f.Meta, f.CreatedAt, f.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create flowchart: %w", err)
	}
	return nil
}

// GetByID retrieves a flowchart by its ID.
func (r *FlowchartRepository) GetByID(ctx context.Context, flowchartID uuid.UUID) (*Flowchart, error) {
	query := `
		SELECT flowchart_id, name, owner_id, meta, created_at, updated_at
		FROM flowchart
		WHERE flowchart_id = $1
	`
	f := &Flowchart{}
	err := r.sess.QueryRow(ctx, query, flowchartID).Scan(
		&f.FlowchartID, &f.Name, &f.OwnerID, &f.Meta, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get flowchart: %w", err)
	}
	return f, nil
}

// CreateNode inserts a node belonging to a flowchart.
func (r *FlowchartRepository) CreateNode(ctx context.Context, n *FlowchartNode) error {
	query := `
		INSERT INTO flowchart_node (node_id, flowchart_id, node_type, ref_id, model_id, position_x, position_y, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := r.sess.Exec(ctx, query,
		n.NodeID, n.FlowchartID, n.NodeType, n.RefID, n.ModelID, n.PositionX, n.PositionY, n.Config,
	)
	if err != nil {
		return fmt.Errorf("failed to create flowchart node: %w", err)
	}
	return nil
}

// ListNodes retrieves every node belonging to a flowchart; the compiler
// (C9) turns this list into a Graph.
func (r *FlowchartRepository) ListNodes(ctx context.Context, flowchartID uuid.UUID) ([]*FlowchartNode, error) {
	query := `
		SELECT node_id, flowchart_id, node_type, ref_id, model_id, position_x, position_y, config
		FROM flowchart_node
		WHERE flowchart_id = $1
	`
	rows, err := r.sess.Query(ctx, query, flowchartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flowchart nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*FlowchartNode
	for rows.Next() {
		n := &FlowchartNode{}
		if err := rows.Scan(&n.NodeID, &n.FlowchartID, &n.NodeType, &n.RefID, &n.ModelID, &n.PositionX, &n.PositionY, &n.Config); err != nil {
			return nil, fmt.Errorf("failed to scan flowchart node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flowchart nodes: %w", err)
	}
	return nodes, nil
}

// CreateEdge inserts an edge belonging to a flowchart.
func (r *FlowchartRepository) CreateEdge(ctx context.Context, e *FlowchartEdge) error {
	query := `
		INSERT INTO flowchart_edge (edge_id, flowchart_id, source_node_id, target_node_id, edge_mode, condition_key)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := r.sess.Exec(ctx, query, e.EdgeID, e.FlowchartID, e.SourceNodeID, e.TargetNodeID, e.EdgeMode, e.ConditionKey)
	if err != nil {
		return fmt.Errorf("failed to create flowchart edge: %w", err)
	}
	return nil
}

// ListEdges retrieves every edge belonging to a flowchart.
func (r *FlowchartRepository) ListEdges(ctx context.Context, flowchartID uuid.UUID) ([]*FlowchartEdge, error) {
	query := `
		SELECT edge_id, flowchart_id, source_node_id, target_node_id, edge_mode, condition_key
		FROM flowchart_edge
		WHERE flowchart_id = $1
	`
	rows, err := r.sess.Query(ctx, query, flowchartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flowchart edges: %w", err)
	}
	defer rows.Close()

	var edges []*FlowchartEdge
	for rows.Next() {
		e := &FlowchartEdge{}
		if err := rows.Scan(&e.EdgeID, &e.FlowchartID, &e.SourceNodeID, &e.TargetNodeID, &e.EdgeMode, &e.ConditionKey); err != nil {
			return nil, fmt.Errorf("failed to scan flowchart edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flowchart edges: %w", err)
	}
	return edges, nil
}
