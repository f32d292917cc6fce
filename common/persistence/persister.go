package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/common/runloop"
)

// RunPersister implements runloop.Persister (C9's seam into C12). Each
// SaveNodeRun or SaveArtifact call runs in its own SessionScope, so the
// writes of one call commit or roll back together (§4.12), but a node run
// and its artifacts are separate transactions.
type RunPersister struct {
	database *db.DB
}

func NewRunPersister(database *db.DB) *RunPersister {
	return &RunPersister{database: database}
}

var _ runloop.Persister = (*RunPersister)(nil)

// SaveNodeRun persists one FlowchartRunNode execution.
func (p *RunPersister) SaveNodeRun(ctx context.Context, rec runloop.NodeRunRecord) error {
	runID, err := uuid.Parse(rec.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", rec.RunID, err)
	}
	nodeID, err := uuid.Parse(rec.NodeID)
	if err != nil {
		return fmt.Errorf("invalid node id %q: %w", rec.NodeID, err)
	}

	return SessionScope(ctx, p.database, func(ctx context.Context, s *Session) error {
		repo := NewFlowchartRunNodeRepository(s)
		n := &FlowchartRunNode{
			RunNodeID:      uuid.New(),
			RunID:          runID,
			NodeID:         nodeID,
			ExecutionIndex: rec.ExecutionIndex,
			InputContext:   rec.InputContext,
			OutputState:    rec.OutputState,
			RoutingState:   rec.RoutingState,
			DegradedStatus: rec.DegradedStatus,
			DegradedReason: rec.DegradedReason,
			StartedAt:      rec.StartedAt,
		}
		if !rec.CompletedAt.IsZero() {
			completed := rec.CompletedAt
			n.CompletedAt = &completed
		}
		return repo.Create(ctx, n)
	})
}

// SaveArtifact persists one NodeArtifact row. The idempotency key is the
// caller-supplied one from runloop.ArtifactRecord; §4.1's artifact-key
// builder (`flowchart_run:{R}:node_run:{K}:artifact:{type}`) is how that
// key is produced upstream in the node runtime.
func (p *RunPersister) SaveArtifact(ctx context.Context, art runloop.ArtifactRecord) error {
	runID, err := uuid.Parse(art.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", art.RunID, err)
	}

	return SessionScope(ctx, p.database, func(ctx context.Context, s *Session) error {
		cas := NewCASStore(s)
		content, err := marshalPayload(art.Payload)
		if err != nil {
			return err
		}
		casID, err := cas.Put(ctx, MediaTypeNodeArtifact, content)
		if err != nil {
			return err
		}

		repo := NewNodeArtifactRepository(s)
		a := &NodeArtifact{
			ArtifactID:     uuid.New(),
			RunID:          runID,
			ArtifactType:   art.ArtifactType,
			IdempotencyKey: ArtifactIdempotencyKey(art.RunID, art.NodeRunKey, art.ArtifactType),
			CasID:          casID,
			Payload:        art.Payload,
		}
		return repo.Create(ctx, a)
	})
}

// ArtifactIdempotencyKey builds the artifact idempotency key per §4.1:
// `flowchart_run:{R}:node_run:{K}:artifact:{type}`.
func ArtifactIdempotencyKey(runID, nodeRunKey, artifactType string) string {
	return fmt.Sprintf("flowchart_run:%s:node_run:%s:artifact:%s", runID, nodeRunKey, artifactType)
}

// NodeRunIdempotencyKey builds the node-run idempotency key per §4.1:
// `flowchart_run:{R}:flowchart_node:{N}:execution:{I}`.
func NodeRunIdempotencyKey(runID, nodeID string, executionIndex int) string {
	return fmt.Sprintf("flowchart_run:%s:flowchart_node:%s:execution:%d", runID, nodeID, executionIndex)
}
