package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// NodeArtifactRepository handles database operations for NodeArtifact rows
// (§3), indexed by {run_id, node_run_id, artifact_type} and idempotency_key.
type NodeArtifactRepository struct {
	sess *Session
}

func NewNodeArtifactRepository(sess *Session) *NodeArtifactRepository {
	return &NodeArtifactRepository{sess: sess}
}

// Create inserts a node artifact. A duplicate idempotency_key is a no-op
// success: artifact emission is idempotent per §4.1's artifact-key builder.
func (r *NodeArtifactRepository) Create(ctx context.Context, a *NodeArtifact) error {
	query := `
		INSERT INTO node_artifact (artifact_id, run_id, run_node_id, artifact_type, idempotency_key, cas_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	err := r.sess.Exec(ctx, query, a.ArtifactID, a.RunID, a.RunNodeID, a.ArtifactType, a.IdempotencyKey, a.CasID, a.Payload, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create node artifact: %w", err)
	}
	return nil
}

// ListByRunNode retrieves every artifact emitted by one node execution.
func (r *NodeArtifactRepository) ListByRunNode(ctx context.Context, runNodeID uuid.UUID) ([]*NodeArtifact, error) {
	query := `
		SELECT artifact_id, run_id, run_node_id, artifact_type, idempotency_key, cas_id, payload, created_at
		FROM node_artifact
		WHERE run_node_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.sess.Query(ctx, query, runNodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*NodeArtifact
	for rows.Next() {
		a := &NodeArtifact{}
		if err := rows.Scan(&a.ArtifactID, &a.RunID, &a.RunNodeID, &a.ArtifactType, &a.IdempotencyKey, &a.CasID, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan node artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node artifacts: %w", err)
	}
	return artifacts, nil
}

// ListByRun retrieves every artifact emitted across an entire run, the
// source trace.go's artifact aggregation reads from.
func (r *NodeArtifactRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*NodeArtifact, error) {
	query := `
		SELECT artifact_id, run_id, run_node_id, artifact_type, idempotency_key, cas_id, payload, created_at
		FROM node_artifact
		WHERE run_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.sess.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node artifacts for run: %w", err)
	}
	defer rows.Close()

	var artifacts []*NodeArtifact
	for rows.Next() {
		a := &NodeArtifact{}
		if err := rows.Scan(&a.ArtifactID, &a.RunID, &a.RunNodeID, &a.ArtifactType, &a.IdempotencyKey, &a.CasID, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan node artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node artifacts for run: %w", err)
	}
	return artifacts, nil
}
