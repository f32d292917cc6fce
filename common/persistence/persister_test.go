package persistence

import "testing"

func TestNodeRunIdempotencyKey_MatchesBuilderFormat(t *testing.T) {
	got := NodeRunIdempotencyKey("R1", "N2", 3)
	want := "flowchart_run:R1:flowchart_node:N2:execution:3"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestArtifactIdempotencyKey_MatchesBuilderFormat(t *testing.T) {
	got := ArtifactIdempotencyKey("R1", "K2", "decision")
	want := "flowchart_run:R1:node_run:K2:artifact:decision"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
