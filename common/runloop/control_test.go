package runloop

import "testing"

func newController() (*Controller, *InMemoryStateStore) {
	states := NewInMemoryStateStore()
	return NewController(states, NewReplayRegistry(), nil), states
}

func TestController_PauseQueuedIsFinal(t *testing.T) {
	c, states := newController()
	states.Set("r1", StatusQueued)

	res := c.Pause("r1")
	if !res.Updated {
		t.Fatal("expected pause from queued to update")
	}
	got, _ := states.Get("r1")
	if got != StatusPaused {
		t.Fatalf("expected paused, got %q", got)
	}
}

func TestController_PauseRunningIsTransientPausing(t *testing.T) {
	c, states := newController()
	states.Set("r1", StatusRunning)

	res := c.Pause("r1")
	if !res.Updated {
		t.Fatal("expected pause from running to update")
	}
	got, _ := states.Get("r1")
	if got != StatusPausing {
		t.Fatalf("expected pausing, got %q", got)
	}

	c.FinishPausing("r1")
	got, _ = states.Get("r1")
	if got != StatusPaused {
		t.Fatalf("expected paused after FinishPausing, got %q", got)
	}
}

func TestController_PauseIsIdempotentWhenAlreadyPaused(t *testing.T) {
	c, states := newController()
	states.Set("r1", StatusPaused)

	res := c.Pause("r1")
	if res.Updated || !res.Idempotent {
		t.Fatalf("expected idempotent no-op, got %+v", res)
	}
}

func TestController_ResumeTransitionsPausedToRunning(t *testing.T) {
	c, states := newController()
	states.Set("r1", StatusPaused)

	res := c.Resume("r1")
	if !res.Updated {
		t.Fatal("expected resume to update")
	}
	got, _ := states.Get("r1")
	if got != StatusRunning {
		t.Fatalf("expected running, got %q", got)
	}
}

func TestController_ResumeIsIdempotentWhenNotPaused(t *testing.T) {
	c, states := newController()
	states.Set("r1", StatusRunning)

	res := c.Resume("r1")
	if res.Updated || !res.Idempotent {
		t.Fatalf("expected idempotent no-op, got %+v", res)
	}
}

func TestController_CancelIsIdempotentOnTerminalRun(t *testing.T) {
	c, states := newController()
	states.Set("r1", StatusSucceeded)

	res := c.Cancel("r1")
	if res.Updated || !res.Idempotent {
		t.Fatalf("expected idempotent no-op, got %+v", res)
	}
}

func TestController_CancelInvokesCancelFunc(t *testing.T) {
	states := NewInMemoryStateStore()
	states.Set("r1", StatusRunning)
	called := false
	c := NewController(states, NewReplayRegistry(), func(runID string) { called = true })

	res := c.Cancel("r1")
	if !res.Updated || !called {
		t.Fatalf("expected cancel to update and invoke cancel func, got %+v called=%v", res, called)
	}
	got, _ := states.Get("r1")
	if got != StatusCancelled {
		t.Fatalf("expected cancelled, got %q", got)
	}
}

func TestController_RetryReturnsSameReplayIDOnRepeatedCalls(t *testing.T) {
	c, _ := newController()
	enqueued := 0
	enqueue := func(sourceRunID string) string {
		enqueued++
		return "replay-1"
	}

	first := c.Retry("r1", "K", enqueue)
	second := c.Retry("r1", "K", enqueue)

	if first.AppliedAction != "replay_queued" || first.ReplayRunID != "replay-1" {
		t.Fatalf("expected replay_queued with id replay-1, got %+v", first)
	}
	if second.AppliedAction != "replay_existing" || !second.Idempotent || second.ReplayRunID != "replay-1" {
		t.Fatalf("expected replay_existing idempotent with same id, got %+v", second)
	}
	if enqueued != 1 {
		t.Fatalf("expected exactly one replay job dispatched, got %d", enqueued)
	}
}
