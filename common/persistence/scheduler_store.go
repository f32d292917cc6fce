package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/common/scheduler"
)

// RunScheduleStore implements scheduler.Store (C11's seam into C12) over
// flowchart_run's next_index_at/cadence columns. Dispatch enqueues a run by
// flipping it back to queued; the actual run-loop pickup happens the same
// way any other queued run does.
type RunScheduleStore struct {
	database *db.DB
}

func NewRunScheduleStore(database *db.DB) *RunScheduleStore {
	return &RunScheduleStore{database: database}
}

var _ scheduler.Store = (*RunScheduleStore)(nil)

func (s *RunScheduleStore) DueEntities(ctx context.Context, now time.Time) ([]scheduler.DueEntity, error) {
	var due []scheduler.DueEntity
	err := SessionScope(ctx, s.database, func(ctx context.Context, sess *Session) error {
		runs, err := NewFlowchartRunRepository(sess).DueForSchedule(ctx, now)
		if err != nil {
			return err
		}
		for _, run := range runs {
			due = append(due, scheduler.DueEntity{
				ID:      run.RunID.String(),
				Cadence: scheduler.Cadence{Value: run.CadenceValue, Unit: run.CadenceUnit},
			})
		}
		return nil
	})
	return due, err
}

func (s *RunScheduleStore) HasActiveJob(ctx context.Context, entityID string) (bool, error) {
	runID, err := uuid.Parse(entityID)
	if err != nil {
		return false, fmt.Errorf("invalid run id %q: %w", entityID, err)
	}
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return false, err
	}
	switch run.Status {
	case RunStatusQueued, RunStatusRunning, RunStatusPausing, RunStatusPaused:
		return true, nil
	default:
		return false, nil
	}
}

func (s *RunScheduleStore) Dispatch(ctx context.Context, entityID string) error {
	runID, err := uuid.Parse(entityID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", entityID, err)
	}
	return SessionScope(ctx, s.database, func(ctx context.Context, sess *Session) error {
		return NewFlowchartRunRepository(sess).UpdateStatus(ctx, runID, RunStatusQueued)
	})
}

func (s *RunScheduleStore) RescheduleNext(ctx context.Context, entityID string, nextAt time.Time) error {
	runID, err := uuid.Parse(entityID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", entityID, err)
	}
	return SessionScope(ctx, s.database, func(ctx context.Context, sess *Session) error {
		return NewFlowchartRunRepository(sess).RescheduleNext(ctx, runID, nextAt)
	})
}

func (s *RunScheduleStore) getRun(ctx context.Context, runID uuid.UUID) (*FlowchartRun, error) {
	var run *FlowchartRun
	err := SessionScope(ctx, s.database, func(ctx context.Context, sess *Session) error {
		var err error
		run, err = NewFlowchartRunRepository(sess).GetByID(ctx, runID)
		return err
	})
	return run, err
}
