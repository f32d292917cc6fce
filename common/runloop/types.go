// Package runloop advances a FlowchartRun through its compiled graph: it
// computes each node's input context, dispatches through the node runtime
// (C8), routes along outgoing edges per the routing_state the node produced,
// and exposes idempotent pause/resume/cancel/retry control actions.
package runloop

import "time"

// Run lifecycle states (spec §3 FlowchartRun).
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusPausing   = "pausing"
	StatusPaused    = "paused"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Control actions (spec §4.9 step 5 / §6 control boundary).
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionCancel = "cancel"
	ActionRetry  = "retry"
)

// ControlResult is the result envelope every control action returns, even
// when it had no effect (idempotent=true).
type ControlResult struct {
	AppliedAction string `json:"applied_action"`
	Updated       bool   `json:"updated"`
	Idempotent    bool   `json:"idempotent"`
	ReplayRunID   string `json:"replay_run_id,omitempty"`
}

// NodeRunRecord is the persisted shape of one FlowchartRunNode execution.
type NodeRunRecord struct {
	RunID           string
	NodeID          string
	ExecutionIndex  int
	InputContext    map[string]interface{}
	OutputState     map[string]interface{}
	RoutingState    map[string]interface{}
	DegradedStatus  bool
	DegradedReason  string
	StartedAt       time.Time
	CompletedAt     time.Time
}

// ArtifactRecord is a NodeArtifact row emitted alongside a node run.
type ArtifactRecord struct {
	RunID        string
	NodeRunKey   string
	ArtifactType string
	Payload      map[string]interface{}
}
