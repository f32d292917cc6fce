package runloop

import "testing"

func TestInMemoryStateStore_SetAndGet(t *testing.T) {
	s := NewInMemoryStateStore()
	s.Set("r1", StatusRunning)
	got, ok := s.Get("r1")
	if !ok || got != StatusRunning {
		t.Fatalf("expected running, got %q ok=%v", got, ok)
	}
}

func TestInMemoryStateStore_CompareAndSetSucceedsFromAllowedState(t *testing.T) {
	s := NewInMemoryStateStore()
	s.Set("r1", StatusPaused)
	if !s.CompareAndSet("r1", []string{StatusPaused}, StatusRunning) {
		t.Fatal("expected CAS to succeed")
	}
	got, _ := s.Get("r1")
	if got != StatusRunning {
		t.Fatalf("expected running, got %q", got)
	}
}

func TestInMemoryStateStore_CompareAndSetFailsFromDisallowedState(t *testing.T) {
	s := NewInMemoryStateStore()
	s.Set("r1", StatusQueued)
	if s.CompareAndSet("r1", []string{StatusPaused}, StatusRunning) {
		t.Fatal("expected CAS to fail from queued state")
	}
}

func TestReplayRegistry_ClaimOrGetFirstThenRepeat(t *testing.T) {
	reg := NewReplayRegistry()
	calls := 0
	mint := func() string { calls++; return "new-run-id" }

	id1, first1 := reg.ClaimOrGet("K", mint)
	id2, first2 := reg.ClaimOrGet("K", mint)

	if !first1 || first2 {
		t.Fatalf("expected first claim true, second false; got %v %v", first1, first2)
	}
	if id1 != id2 {
		t.Fatalf("expected same replay id, got %q vs %q", id1, id2)
	}
	if calls != 1 {
		t.Fatalf("expected mint called once, got %d", calls)
	}
}
