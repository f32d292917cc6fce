package runloop

import "github.com/google/uuid"

// Controller executes pause/resume/cancel/retry against a run's StateStore
// and ReplayRegistry. All four actions are idempotent by design (spec §7):
// repeated calls always return a result envelope, never an error, even when
// no effective change occurred.
type Controller struct {
	states  StateStore
	replays *ReplayRegistry
	cancel  CancelFunc
}

// CancelFunc asks the active node's provider to cancel the in-flight
// dispatch for runID (Kubernetes Job deletion with grace→force, or a
// cooperative abort flag for workspace executions).
type CancelFunc func(runID string)

func NewController(states StateStore, replays *ReplayRegistry, cancel CancelFunc) *Controller {
	return &Controller{states: states, replays: replays, cancel: cancel}
}

// Pause: queued→paused is a final transition; running/pausing→pausing is
// transient (the loop observes "pausing" at its next suspension point and
// sets "paused" itself).
func (c *Controller) Pause(runID string) ControlResult {
	current, _ := c.states.Get(runID)
	switch current {
	case StatusQueued:
		c.states.Set(runID, StatusPaused)
		return ControlResult{AppliedAction: ActionPause, Updated: true}
	case StatusPaused, StatusPausing:
		return ControlResult{AppliedAction: ActionPause, Updated: false, Idempotent: true}
	case StatusRunning:
		c.states.Set(runID, StatusPausing)
		return ControlResult{AppliedAction: ActionPause, Updated: true}
	default:
		return ControlResult{AppliedAction: ActionPause, Updated: false, Idempotent: true}
	}
}

// FinishPausing completes a running→pausing→paused transition once the run
// loop reaches its next suspension point. No-op if the run isn't pausing.
func (c *Controller) FinishPausing(runID string) {
	c.states.CompareAndSet(runID, []string{StatusPausing}, StatusPaused)
}

func (c *Controller) Resume(runID string) ControlResult {
	if c.states.CompareAndSet(runID, []string{StatusPaused}, StatusRunning) {
		return ControlResult{AppliedAction: ActionResume, Updated: true}
	}
	return ControlResult{AppliedAction: ActionResume, Updated: false, Idempotent: true}
}

func (c *Controller) Cancel(runID string) ControlResult {
	current, _ := c.states.Get(runID)
	if current == StatusCancelled || current == StatusSucceeded || current == StatusFailed {
		return ControlResult{AppliedAction: ActionCancel, Updated: false, Idempotent: true}
	}
	c.states.Set(runID, StatusCancelled)
	if c.cancel != nil {
		c.cancel(runID)
	}
	return ControlResult{AppliedAction: ActionCancel, Updated: true}
}

// Retry requires an idempotency key. The first call enqueues a replay run
// and returns applied_action="replay_queued" with the new run id;
// subsequent calls with the same key return applied_action="replay_existing"
// and the prior replay id, with idempotent=true.
func (c *Controller) Retry(runID, idempotencyKey string, enqueueReplay func(sourceRunID string) string) ControlResult {
	replayID, first := c.replays.ClaimOrGet(idempotencyKey, func() string {
		return enqueueReplay(runID)
	})
	if first {
		return ControlResult{AppliedAction: "replay_queued", Updated: true, ReplayRunID: replayID}
	}
	return ControlResult{AppliedAction: "replay_existing", Updated: false, Idempotent: true, ReplayRunID: replayID}
}

// NewRunID mints a fresh run identifier for a replay; exposed so callers
// needn't depend on uuid directly when wiring enqueueReplay.
func NewRunID() string {
	return uuid.NewString()
}
