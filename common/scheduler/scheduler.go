package scheduler

import (
	"context"
	"time"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// DueEntity is one flow or RAG source whose next_index_at has elapsed.
type DueEntity struct {
	ID      string
	Cadence Cadence
}

// Store is the persistence seam (C12) the scheduler polls against.
type Store interface {
	// DueEntities lists every entity whose next_index_at <= now.
	DueEntities(ctx context.Context, now time.Time) ([]DueEntity, error)
	// HasActiveJob reports whether a job for this entity is already running.
	HasActiveJob(ctx context.Context, entityID string) (bool, error)
	// Dispatch starts a job for this entity.
	Dispatch(ctx context.Context, entityID string) error
	// RescheduleNext persists the entity's next next_index_at.
	RescheduleNext(ctx context.Context, entityID string, nextAt time.Time) error
}

// Scheduler is a cooperative, single-process polling loop: on each tick it
// lists due entities, skips any with an active job, else dispatches and
// reschedules per its cadence (§4.11).
type Scheduler struct {
	store        Store
	logger       Logger
	pollInterval time.Duration
}

// NewScheduler constructs a Scheduler polling store every pollInterval.
func NewScheduler(store Store, logger Logger, pollInterval time.Duration) *Scheduler {
	return &Scheduler{store: store, logger: logger, pollInterval: pollInterval}
}

// Start runs the polling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler starting", "poll_interval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// tick runs a single poll-and-dispatch pass at the current time by
// delegating to Tick, which tests call directly with a fixed time.
func (s *Scheduler) tick(ctx context.Context) error {
	return s.Tick(ctx, time.Now())
}

// Tick runs one poll-and-dispatch pass against the given "now", skipping any
// entity with an already-active job and rescheduling every dispatched one.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	due, err := s.store.DueEntities(ctx, now)
	if err != nil {
		return err
	}

	for _, entity := range due {
		active, err := s.store.HasActiveJob(ctx, entity.ID)
		if err != nil {
			s.logger.Error("failed to check active job", "entity_id", entity.ID, "error", err)
			continue
		}
		if active {
			s.logger.Debug("skipping due entity with active job", "entity_id", entity.ID)
			continue
		}

		if err := s.store.Dispatch(ctx, entity.ID); err != nil {
			s.logger.Error("failed to dispatch entity", "entity_id", entity.ID, "error", err)
			continue
		}

		next := entity.Cadence.NextIndexAt(now)
		if err := s.store.RescheduleNext(ctx, entity.ID, next); err != nil {
			s.logger.Error("failed to reschedule entity", "entity_id", entity.ID, "error", err)
			continue
		}

		s.logger.Info("dispatched due entity", "entity_id", entity.ID, "next_index_at", next)
	}

	return nil
}
