package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/orchestrator/common/compiler"
	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/common/eventbus"
	"github.com/lyzr/orchestrator/common/logger"
	"github.com/lyzr/orchestrator/common/noderuntime"
	"github.com/lyzr/orchestrator/common/persistence"
	"github.com/lyzr/orchestrator/common/runloop"
)

// llmEndpointEnv names the env var carrying the provider-agnostic LLM
// execution endpoint a task node's envelope is POSTed to. Concrete
// provider SDKs (OpenAI/Gemini/Claude/vLLM) are out of scope for this
// deployment's dependency stack, and no HTTP client library appears
// anywhere in the example pack for this seam, so LLMInvoke is a direct
// net/http client rather than a wrapped dependency.
const llmEndpointEnv = "LLM_ENDPOINT"

var httpClient = &http.Client{Timeout: 2 * time.Minute}

// Engine assembles C9's run loop over C12's storage and C10's event bus: it
// is the thin boundary spec.md §6 describes (submit_run/control/trace/
// status), not a second copy of any component's internals.
type Engine struct {
	database   *db.DB
	log        *logger.Logger
	registry   *noderuntime.Registry
	states     runloop.StateStore
	persister  *persistence.RunPersister
	events     *eventbus.RunEventEmitter
	controller *runloop.Controller
}

func NewEngine(database *db.DB, log *logger.Logger, registry *noderuntime.Registry, states runloop.StateStore, persister *persistence.RunPersister, events *eventbus.RunEventEmitter, controller *runloop.Controller) *Engine {
	return &Engine{
		database:   database,
		log:        log,
		registry:   registry,
		states:     states,
		persister:  persister,
		events:     events,
		controller: controller,
	}
}

// SubmitRun creates a queued FlowchartRun row for flowchartID and hands it
// to the loop in its own goroutine; the run's id is returned immediately
// (spec.md §4.9 step 1/§6 submit_run boundary).
func (e *Engine) SubmitRun(ctx context.Context, flowchartID uuid.UUID, submittedBy string) (string, error) {
	runID := uuid.New()
	run := &persistence.FlowchartRun{
		RunID:       runID,
		FlowchartID: flowchartID,
		Status:      persistence.RunStatusQueued,
		QueuedAt:    time.Now().UTC(),
	}
	if submittedBy != "" {
		run.SubmittedBy = &submittedBy
	}

	err := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		return persistence.NewFlowchartRunRepository(sess).Create(ctx, run)
	})
	if err != nil {
		return "", fmt.Errorf("orchestrator: creating flowchart run: %w", err)
	}

	e.states.Set(runID.String(), runloop.StatusQueued)
	go e.runDetached(context.Background(), runID.String(), flowchartID)
	return runID.String(), nil
}

// runDetached advances runID's flowchart to completion, logging rather than
// propagating a failure — the caller already returned the run id to the
// submitter, who observes outcome via trace/status, not this goroutine's
// return value.
func (e *Engine) runDetached(ctx context.Context, runID string, flowchartID uuid.UUID) {
	status, err := e.RunFlowchart(ctx, runID, flowchartID)
	if err != nil {
		e.log.Error("flowchart run failed", "run_id", runID, "error", err)
		return
	}
	e.log.Info("flowchart run finished", "run_id", runID, "status", status)
}

// RunFlowchart loads flowchartID's authoring schema, compiles it (C9), and
// advances runID through it to a terminal or suspended state, updating the
// durable FlowchartRun row to match.
func (e *Engine) RunFlowchart(ctx context.Context, runID string, flowchartID uuid.UUID) (string, error) {
	graph, err := e.loadGraph(ctx, flowchartID)
	if err != nil {
		return "", err
	}

	loop := runloop.NewLoop(graph, e.registry, e.states, e.persister, e.events)
	status, err := loop.Run(ctx, runID)
	if err != nil {
		return status, err
	}

	runUUID, parseErr := uuid.Parse(runID)
	if parseErr != nil {
		return status, fmt.Errorf("orchestrator: invalid run id %q: %w", runID, parseErr)
	}
	dbErr := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		return persistence.NewFlowchartRunRepository(sess).UpdateStatus(ctx, runUUID, persistence.FlowchartRunStatus(status))
	})
	if dbErr != nil {
		return status, fmt.Errorf("orchestrator: persisting terminal run status: %w", dbErr)
	}
	return status, nil
}

// LLMInvoke implements noderuntime.LLMInvoke by POSTing the task envelope to
// a configurable endpoint and decoding its JSON response. The endpoint's
// request/response shape is opaque to this module — it is whatever the
// deployed model-serving layer expects — since owning a concrete LLM
// backend is explicitly out of scope here.
func (e *Engine) LLMInvoke(ctx context.Context, envelope map[string]interface{}) (map[string]interface{}, error) {
	endpoint := os.Getenv(llmEndpointEnv)
	if endpoint == "" {
		return nil, fmt.Errorf("orchestrator: %s is not configured", llmEndpointEnv)
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encoding llm envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: calling llm endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("orchestrator: llm endpoint returned status %d", resp.StatusCode)
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("orchestrator: decoding llm response: %w", err)
	}
	return out, nil
}

func (e *Engine) loadGraph(ctx context.Context, flowchartID uuid.UUID) (*compiler.Graph, error) {
	var schema *compiler.FlowchartSchema
	err := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		schema, err = persistence.LoadSchema(ctx, persistence.NewFlowchartRepository(sess), flowchartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	graph, err := compiler.Compile(schema)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: compiling flowchart %s: %w", flowchartID, err)
	}
	return graph, nil
}

// SubflowRunner implements noderuntime.SubflowRunner: it runs subFlowchartID
// to completion under its own run id, isolated from the parent run's
// FlowchartRunNode rows (spec.md §4.8 "flowchart" node), and returns the
// last visited node's output_state as the sub-flowchart's result.
func (e *Engine) SubflowRunner(ctx context.Context, subFlowchartID string, req noderuntime.Request) (map[string]interface{}, error) {
	flowchartID, err := uuid.Parse(subFlowchartID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: invalid sub-flowchart id %q: %w", subFlowchartID, err)
	}

	subRunID := uuid.New()
	run := &persistence.FlowchartRun{
		RunID:       subRunID,
		FlowchartID: flowchartID,
		Status:      persistence.RunStatusQueued,
		QueuedAt:    time.Now().UTC(),
	}
	if err := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		return persistence.NewFlowchartRunRepository(sess).Create(ctx, run)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: creating sub-flowchart run: %w", err)
	}

	e.states.Set(subRunID.String(), runloop.StatusQueued)
	status, err := e.RunFlowchart(ctx, subRunID.String(), flowchartID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: running sub-flowchart %s: %w", subFlowchartID, err)
	}
	if status != runloop.StatusSucceeded {
		return nil, fmt.Errorf("orchestrator: sub-flowchart %s ended in status %q", subFlowchartID, status)
	}

	var lastOutput map[string]interface{}
	err = persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		nodes, err := persistence.NewFlowchartRunNodeRepository(sess).ListByRun(ctx, subRunID)
		if err != nil {
			return err
		}
		if len(nodes) > 0 {
			lastOutput = nodes[len(nodes)-1].OutputState
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading sub-flowchart result: %w", err)
	}
	if lastOutput == nil {
		lastOutput = map[string]interface{}{}
	}
	return lastOutput, nil
}

// PollQueuedRuns periodically picks up runs in "queued" status — both
// freshly submitted ones (normally already dispatched by SubmitRun) and
// ones the scheduler (C11) requeued via RunScheduleStore.Dispatch — and
// advances each in its own goroutine. This is the pickup path a
// process restart or a scheduler-driven re-run relies on.
func (e *Engine) PollQueuedRuns(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.dispatchQueued(ctx)
		}
	}
}

func (e *Engine) dispatchQueued(ctx context.Context) {
	var runs []*persistence.FlowchartRun
	err := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		runs, err = persistence.NewFlowchartRunRepository(sess).ListQueued(ctx, 50)
		return err
	})
	if err != nil {
		e.log.Error("polling queued runs failed", "error", err)
		return
	}
	for _, run := range runs {
		if status, ok := e.states.Get(run.RunID.String()); ok && status != runloop.StatusQueued {
			continue
		}
		go e.runDetached(context.Background(), run.RunID.String(), run.FlowchartID)
	}
}

// Trace assembles the aggregated trace for runID (spec.md §4.9 step 6/§6).
func (e *Engine) Trace(ctx context.Context, runID uuid.UUID, degradedOnly bool, limit int) (runloop.Trace, error) {
	var records []*persistence.FlowchartRunNode
	var artifacts []*persistence.NodeArtifact
	err := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		records, err = persistence.NewFlowchartRunNodeRepository(sess).ListByRun(ctx, runID)
		if err != nil {
			return err
		}
		artifacts, err = persistence.NewNodeArtifactRepository(sess).ListByRun(ctx, runID)
		return err
	})
	if err != nil {
		return runloop.Trace{}, fmt.Errorf("orchestrator: loading trace for run %s: %w", runID, err)
	}

	recs := make([]runloop.NodeRunRecord, 0, len(records))
	for _, r := range records {
		rec := runloop.NodeRunRecord{
			RunID:          r.RunID.String(),
			NodeID:         r.NodeID.String(),
			ExecutionIndex: r.ExecutionIndex,
			InputContext:   r.InputContext,
			OutputState:    r.OutputState,
			RoutingState:   r.RoutingState,
			DegradedStatus: r.DegradedStatus,
			DegradedReason: r.DegradedReason,
		}
		if !r.StartedAt.IsZero() {
			rec.StartedAt = r.StartedAt
		}
		if r.CompletedAt != nil {
			rec.CompletedAt = *r.CompletedAt
		}
		recs = append(recs, rec)
	}

	arts := make([]runloop.ArtifactRecord, 0, len(artifacts))
	for _, a := range artifacts {
		arts = append(arts, runloop.ArtifactRecord{
			RunID:        a.RunID.String(),
			ArtifactType: a.ArtifactType,
			Payload:      a.Payload,
		})
	}

	return runloop.BuildTrace(recs, arts, degradedOnly, limit), nil
}

// Status reports a run's live state plus a warning count/list derived from
// its trace's degraded node runs (spec.md §6 status boundary).
func (e *Engine) Status(ctx context.Context, runID uuid.UUID) (map[string]interface{}, error) {
	state, ok := e.states.Get(runID.String())
	if !ok {
		err := persistence.SessionScope(ctx, e.database, func(ctx context.Context, sess *persistence.Session) error {
			run, err := persistence.NewFlowchartRunRepository(sess).GetByID(ctx, runID)
			if err != nil {
				return err
			}
			state = string(run.Status)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resolving run status: %w", err)
		}
	}

	trace, err := e.Trace(ctx, runID, true, 0)
	if err != nil {
		return nil, err
	}

	warnings := make([]map[string]interface{}, 0, len(trace.Timeline))
	for _, w := range trace.Timeline {
		warnings = append(warnings, map[string]interface{}{"node_id": w.NodeID, "reason": w.Reason})
	}

	return map[string]interface{}{
		"state":         state,
		"warning_count": len(warnings),
		"warnings":      warnings,
	}, nil
}
