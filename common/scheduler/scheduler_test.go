package scheduler

import (
	"context"
	"testing"
	"time"
)

type fakeLogger struct{}

func (fakeLogger) Info(string, ...interface{})  {}
func (fakeLogger) Error(string, ...interface{}) {}
func (fakeLogger) Warn(string, ...interface{})  {}
func (fakeLogger) Debug(string, ...interface{}) {}

type fakeStore struct {
	due           []DueEntity
	activeJobs    map[string]bool
	dispatched    []string
	rescheduledAt map[string]time.Time
}

func newFakeStore(due ...DueEntity) *fakeStore {
	return &fakeStore{
		due:           due,
		activeJobs:    map[string]bool{},
		rescheduledAt: map[string]time.Time{},
	}
}

func (s *fakeStore) DueEntities(ctx context.Context, now time.Time) ([]DueEntity, error) {
	return s.due, nil
}

func (s *fakeStore) HasActiveJob(ctx context.Context, entityID string) (bool, error) {
	return s.activeJobs[entityID], nil
}

func (s *fakeStore) Dispatch(ctx context.Context, entityID string) error {
	s.dispatched = append(s.dispatched, entityID)
	return nil
}

func (s *fakeStore) RescheduleNext(ctx context.Context, entityID string, nextAt time.Time) error {
	s.rescheduledAt[entityID] = nextAt
	return nil
}

func TestScheduler_Tick_DispatchesAndReschedulesDueEntities(t *testing.T) {
	store := newFakeStore(DueEntity{ID: "flow-1", Cadence: Cadence{Value: 1, Unit: "hours"}})
	s := NewScheduler(store, fakeLogger{}, time.Second)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Tick(context.Background(), now); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if len(store.dispatched) != 1 || store.dispatched[0] != "flow-1" {
		t.Fatalf("expected flow-1 dispatched, got %v", store.dispatched)
	}
	want := now.Add(time.Hour)
	if got := store.rescheduledAt["flow-1"]; !got.Equal(want) {
		t.Fatalf("expected reschedule to %v, got %v", want, got)
	}
}

func TestScheduler_Tick_SkipsEntitiesWithActiveJob(t *testing.T) {
	store := newFakeStore(DueEntity{ID: "flow-1"})
	store.activeJobs["flow-1"] = true
	s := NewScheduler(store, fakeLogger{}, time.Second)

	if err := s.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if len(store.dispatched) != 0 {
		t.Fatalf("expected no dispatch for entity with active job, got %v", store.dispatched)
	}
	if _, rescheduled := store.rescheduledAt["flow-1"]; rescheduled {
		t.Fatal("expected no reschedule for entity with active job")
	}
}

func TestScheduler_StartStopsOnContextCancellation(t *testing.T) {
	store := newFakeStore()
	s := NewScheduler(store, fakeLogger{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context.Canceled error from Start")
		}
	case <-time.After(time.Second):
		t.Fatal("expected Start to return after context cancellation")
	}
}
