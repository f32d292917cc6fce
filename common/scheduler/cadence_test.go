package scheduler

import (
	"testing"
	"time"
)

func TestCadence_NextIndexAt_AppliesUnitMultiplier(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		cadence  Cadence
		expected time.Time
	}{
		{Cadence{Value: 30, Unit: "minutes"}, from.Add(30 * time.Minute)},
		{Cadence{Value: 2, Unit: "hours"}, from.Add(2 * time.Hour)},
		{Cadence{Value: 1, Unit: "days"}, from.Add(24 * time.Hour)},
		{Cadence{Value: 1, Unit: "weeks"}, from.Add(7 * 24 * time.Hour)},
	}
	for _, c := range cases {
		got := c.cadence.NextIndexAt(from)
		if !got.Equal(c.expected) {
			t.Fatalf("cadence %+v: expected %v, got %v", c.cadence, c.expected, got)
		}
	}
}

func TestCadence_NextIndexAt_FallsBackToDefaultOnUnrecognizedUnit(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Cadence{Value: 5, Unit: "fortnights"}.NextIndexAt(from)
	expected := from.Add(time.Duration(DefaultCadence.Value) * time.Hour)
	if !got.Equal(expected) {
		t.Fatalf("expected default cadence fallback %v, got %v", expected, got)
	}
}

func TestCadence_NextIndexAt_FallsBackOnNonPositiveValue(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Cadence{Value: 0, Unit: "hours"}.NextIndexAt(from)
	expected := from.Add(time.Duration(DefaultCadence.Value) * time.Hour)
	if !got.Equal(expected) {
		t.Fatalf("expected default cadence fallback %v, got %v", expected, got)
	}
}
