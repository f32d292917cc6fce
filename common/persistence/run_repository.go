package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlowchartRunRepository handles database operations for flowchart runs,
// grounded on common/repository.RunRepository's Create/GetByID/UpdateStatus
// shape, generalized with the next_index_at/cadence columns C11 polls.
type FlowchartRunRepository struct {
	sess *Session
}

func NewFlowchartRunRepository(sess *Session) *FlowchartRunRepository {
	return &FlowchartRunRepository{sess: sess}
}

// Create inserts a new flowchart run.
func (r *FlowchartRunRepository) Create(ctx context.Context, run *FlowchartRun) error {
	query := `
		INSERT INTO flowchart_run (run_id, flowchart_id, status, idempotency_key, submitted_by, queued_at, next_index_at, cadence_value, cadence_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := r.sess.Exec(ctx, query,
		run.RunID, run.FlowchartID, run.Status, run.IdempotencyKey, run.SubmittedBy, run.QueuedAt,
		run.NextIndexAt, run.CadenceValue, run.CadenceUnit,
	)
	if err != nil {
		return fmt.Errorf("failed to create flowchart run: %w", err)
	}
	return nil
}

// GetByID retrieves a flowchart run by its ID.
func (r *FlowchartRunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*FlowchartRun, error) {
	query := `
		SELECT run_id, flowchart_id, status, idempotency_key, submitted_by, queued_at, started_at, finished_at, next_index_at, cadence_value, cadence_unit
		FROM flowchart_run
		WHERE run_id = $1
	`
	run := &FlowchartRun{}
	err := r.sess.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.FlowchartID, &run.Status, &run.IdempotencyKey, &run.SubmittedBy, &run.QueuedAt,
		&run.StartedAt, &run.FinishedAt, &run.NextIndexAt, &run.CadenceValue, &run.CadenceUnit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get flowchart run: %w", err)
	}
	return run, nil
}

// UpdateStatus transitions a run's status, stamping started_at/finished_at
// when the new status is the first running/terminal observation.
func (r *FlowchartRunRepository) UpdateStatus(ctx context.Context, runID uuid.UUID, status FlowchartRunStatus) error {
	query := `
		UPDATE flowchart_run
		SET status = $2,
		    started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
		    finished_at = CASE WHEN $2 IN ('succeeded','failed','cancelled') THEN now() ELSE finished_at END
		WHERE run_id = $1
	`
	if err := r.sess.Exec(ctx, query, runID, status); err != nil {
		return fmt.Errorf("failed to update flowchart run status: %w", err)
	}
	return nil
}

// ListByFlowchart retrieves runs submitted against a given flowchart.
func (r *FlowchartRunRepository) ListByFlowchart(ctx context.Context, flowchartID uuid.UUID, limit int) ([]*FlowchartRun, error) {
	query := `
		SELECT run_id, flowchart_id, status, idempotency_key, submitted_by, queued_at, started_at, finished_at, next_index_at, cadence_value, cadence_unit
		FROM flowchart_run
		WHERE flowchart_id = $1
		ORDER BY queued_at DESC
		LIMIT $2
	`
	rows, err := r.sess.Query(ctx, query, flowchartID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list flowchart runs: %w", err)
	}
	defer rows.Close()

	var runs []*FlowchartRun
	for rows.Next() {
		run := &FlowchartRun{}
		err := rows.Scan(
			&run.RunID, &run.FlowchartID, &run.Status, &run.IdempotencyKey, &run.SubmittedBy, &run.QueuedAt,
			&run.StartedAt, &run.FinishedAt, &run.NextIndexAt, &run.CadenceValue, &run.CadenceUnit,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flowchart run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flowchart runs: %w", err)
	}
	return runs, nil
}

// ListQueued lists runs awaiting pickup by the run loop, oldest first —
// read by the orchestrator's dispatch poller, which both freshly submitted
// runs and scheduler-requeued runs (RunScheduleStore.Dispatch) land in.
func (r *FlowchartRunRepository) ListQueued(ctx context.Context, limit int) ([]*FlowchartRun, error) {
	query := `
		SELECT run_id, flowchart_id, status, idempotency_key, submitted_by, queued_at, started_at, finished_at, next_index_at, cadence_value, cadence_unit
		FROM flowchart_run
		WHERE status = 'queued'
		ORDER BY queued_at ASC
		LIMIT $1
	`
	rows, err := r.sess.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued flowchart runs: %w", err)
	}
	defer rows.Close()

	var runs []*FlowchartRun
	for rows.Next() {
		run := &FlowchartRun{}
		err := rows.Scan(
			&run.RunID, &run.FlowchartID, &run.Status, &run.IdempotencyKey, &run.SubmittedBy, &run.QueuedAt,
			&run.StartedAt, &run.FinishedAt, &run.NextIndexAt, &run.CadenceValue, &run.CadenceUnit,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued flowchart run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queued flowchart runs: %w", err)
	}
	return runs, nil
}

// DueForSchedule lists runs whose next_index_at has elapsed — the query
// backing scheduler.Store.DueEntities (§4.11).
func (r *FlowchartRunRepository) DueForSchedule(ctx context.Context, now time.Time) ([]*FlowchartRun, error) {
	query := `
		SELECT run_id, flowchart_id, status, idempotency_key, submitted_by, queued_at, started_at, finished_at, next_index_at, cadence_value, cadence_unit
		FROM flowchart_run
		WHERE next_index_at IS NOT NULL AND next_index_at <= $1
		ORDER BY next_index_at ASC
	`
	rows, err := r.sess.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due flowchart runs: %w", err)
	}
	defer rows.Close()

	var runs []*FlowchartRun
	for rows.Next() {
		run := &FlowchartRun{}
		err := rows.Scan(
			&run.RunID, &run.FlowchartID, &run.Status, &run.IdempotencyKey, &run.SubmittedBy, &run.QueuedAt,
			&run.StartedAt, &run.FinishedAt, &run.NextIndexAt, &run.CadenceValue, &run.CadenceUnit,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due flowchart run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due flowchart runs: %w", err)
	}
	return runs, nil
}

// RescheduleNext advances a run's next_index_at, the write backing
// scheduler.Store.RescheduleNext.
func (r *FlowchartRunRepository) RescheduleNext(ctx context.Context, runID uuid.UUID, nextAt time.Time) error {
	query := `UPDATE flowchart_run SET next_index_at = $2 WHERE run_id = $1`
	if err := r.sess.Exec(ctx, query, runID, nextAt); err != nil {
		return fmt.Errorf("failed to reschedule flowchart run: %w", err)
	}
	return nil
}

// FlowchartRunNodeRepository handles database operations for per-node
// executions within a run (§3 FlowchartRunNode).
type FlowchartRunNodeRepository struct {
	sess *Session
}

func NewFlowchartRunNodeRepository(sess *Session) *FlowchartRunNodeRepository {
	return &FlowchartRunNodeRepository{sess: sess}
}

// Create inserts one node execution record. FlowchartRunNode rows are
// append-only within a run: each execution_index gets its own row (§3
// "Lifetime = that of its run").
func (r *FlowchartRunNodeRepository) Create(ctx context.Context, n *FlowchartRunNode) error {
	query := `
		INSERT INTO flowchart_run_node (
			run_node_id, run_id, node_id, execution_index,
			input_context_json, output_state_json, routing_state_json,
			degraded_status, degraded_reason,
			resolved_agent, resolved_role, resolved_instruction_manifest_hash, instruction_materialized_paths,
			selected_provider, final_provider, provider_dispatch_id, workspace_identity, dispatch_status,
			fallback_attempted, fallback_reason,
			api_failure_category, cli_fallback_used, cli_preflight_passed,
			started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
	`
	err := r.sess.Exec(ctx, query,
		n.RunNodeID, n.RunID, n.NodeID, n.ExecutionIndex,
		n.InputContext, n.OutputState, n.RoutingState,
		n.DegradedStatus, n.DegradedReason,
		n.ResolvedAgent, n.ResolvedRole, n.ResolvedInstructionManifestHash, n.InstructionMaterializedPaths,
		n.SelectedProvider, n.FinalProvider, n.ProviderDispatchID, n.WorkspaceIdentity, n.DispatchStatus,
		n.FallbackAttempted, n.FallbackReason,
		n.APIFailureCategory, n.CLIFallbackUsed, n.CLIPreflightPassed,
		n.StartedAt, n.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create flowchart run node: %w", err)
	}
	return nil
}

// ListByRun retrieves every node execution for a run in execution order —
// the source trace.go's aggregation reads from.
func (r *FlowchartRunNodeRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*FlowchartRunNode, error) {
	query := `
		SELECT run_node_id, run_id, node_id, execution_index,
		       input_context_json, output_state_json, routing_state_json,
		       degraded_status, degraded_reason,
		       resolved_agent, resolved_role, resolved_instruction_manifest_hash, instruction_materialized_paths,
		       selected_provider, final_provider, provider_dispatch_id, workspace_identity, dispatch_status,
		       fallback_attempted, fallback_reason,
		       api_failure_category, cli_fallback_used, cli_preflight_passed,
		       started_at, completed_at
		FROM flowchart_run_node
		WHERE run_id = $1
		ORDER BY execution_index ASC
	`
	rows, err := r.sess.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flowchart run nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*FlowchartRunNode
	for rows.Next() {
		n := &FlowchartRunNode{}
		err := rows.Scan(
			&n.RunNodeID, &n.RunID, &n.NodeID, &n.ExecutionIndex,
			&n.InputContext, &n.OutputState, &n.RoutingState,
			&n.DegradedStatus, &n.DegradedReason,
			&n.ResolvedAgent, &n.ResolvedRole, &n.ResolvedInstructionManifestHash, &n.InstructionMaterializedPaths,
			&n.SelectedProvider, &n.FinalProvider, &n.ProviderDispatchID, &n.WorkspaceIdentity, &n.DispatchStatus,
			&n.FallbackAttempted, &n.FallbackReason,
			&n.APIFailureCategory, &n.CLIFallbackUsed, &n.CLIPreflightPassed,
			&n.StartedAt, &n.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flowchart run node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flowchart run nodes: %w", err)
	}
	return nodes, nil
}

// HasActiveRun reports whether a flowchart already has a run in a
// non-terminal status. RunScheduleStore.HasActiveJob does not use it; it
// checks the due run's own status instead.
func (r *FlowchartRunRepository) HasActiveRun(ctx context.Context, flowchartID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM flowchart_run
			WHERE flowchart_id = $1 AND status IN ('queued','running','pausing','paused')
		)
	`
	var active bool
	if err := r.sess.QueryRow(ctx, query, flowchartID).Scan(&active); err != nil {
		return false, fmt.Errorf("failed to check active flowchart run: %w", err)
	}
	return active, nil
}
