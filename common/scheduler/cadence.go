// Package scheduler implements the cooperative polling loop that advances
// next_index_at for due flows and RAG sources (§4.11).
package scheduler

import "time"

// Cadence is the `{value, unit}` configuration recognized for
// next_index_at scheduling (§4's Configuration table: "Scheduler:
// {next_index_at policy unit ∈ {minutes,hours,days,weeks}}").
type Cadence struct {
	Value int
	Unit  string
}

// DefaultCadence is applied when a source carries no explicit cadence.
var DefaultCadence = Cadence{Value: 1, Unit: "hours"}

// unitDurations maps a recognized unit to its time.Duration multiplier.
var unitDurations = map[string]time.Duration{
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// NextIndexAt computes the next due time from `from`, using DefaultCadence
// if the unit is unrecognized or value is non-positive.
func (c Cadence) NextIndexAt(from time.Time) time.Time {
	unit, ok := unitDurations[c.Unit]
	value := c.Value
	if !ok || value <= 0 {
		unit = unitDurations[DefaultCadence.Unit]
		value = DefaultCadence.Value
	}
	return from.Add(time.Duration(value) * unit)
}
