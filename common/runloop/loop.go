package runloop

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/common/compiler"
	"github.com/lyzr/orchestrator/common/noderuntime"
)

// Persister is the seam to C12: Run saves every visited node's record
// through SaveNodeRun. SaveArtifact is part of the interface, but Run does
// not call it. The run loop never writes storage directly.
type Persister interface {
	SaveNodeRun(ctx context.Context, rec NodeRunRecord) error
	SaveArtifact(ctx context.Context, art ArtifactRecord) error
}

// EventEmitter is the seam to C10: the loop emits one event per visited
// node and a terminal event when the run ends.
type EventEmitter interface {
	EmitNodeVisited(ctx context.Context, runID string, rec NodeRunRecord)
	EmitRunTerminal(ctx context.Context, runID, status string)
}

// Loop advances a single FlowchartRun through its compiled Graph.
type Loop struct {
	graph      *compiler.Graph
	registry   *noderuntime.Registry
	states     StateStore
	persister  Persister
	events     EventEmitter
	execCounts map[string]int
}

func NewLoop(graph *compiler.Graph, registry *noderuntime.Registry, states StateStore, persister Persister, events EventEmitter) *Loop {
	return &Loop{
		graph:      graph,
		registry:   registry,
		states:     states,
		persister:  persister,
		events:     events,
		execCounts: make(map[string]int),
	}
}

// upstreamOutput accumulates one upstream node's output_state, keyed by
// node id, used to compute input_context (spec §4.9 step 3: "latest
// upstream solid output, dotted upstream outputs, and aggregate
// upstream_nodes").
type upstreamOutput struct {
	output map[string]interface{}
	solid  bool
}

// Run advances the run from the start node to a terminal node or run
// cancellation/pause, whichever comes first. It returns the final run
// status.
func (l *Loop) Run(ctx context.Context, runID string) (string, error) {
	if current, _ := l.states.Get(runID); current != StatusPausing && current != StatusCancelled {
		l.states.Set(runID, StatusRunning)
	}

	upstream := make(map[string]upstreamOutput)
	queue := []string{l.graph.StartID}
	visited := make(map[string]bool)

	for len(queue) > 0 {
		if status, _ := l.states.Get(runID); status == StatusPausing {
			l.states.Set(runID, StatusPaused)
			return StatusPaused, nil
		}
		if status, _ := l.states.Get(runID); status == StatusCancelled {
			l.events.EmitRunTerminal(ctx, runID, StatusCancelled)
			return StatusCancelled, nil
		}

		nodeID := queue[0]
		queue = queue[1:]
		if visited[nodeID] {
			continue
		}
		visited[nodeID] = true

		node, ok := l.graph.Nodes[nodeID]
		if !ok {
			return StatusFailed, fmt.Errorf("execution_error: node %s not found in graph", nodeID)
		}

		inputContext := computeInputContext(node, upstream)
		execIndex := l.execCounts[nodeID]
		l.execCounts[nodeID] = execIndex + 1

		handler, err := l.registry.Lookup(node.Type)
		if err != nil {
			return StatusFailed, fmt.Errorf("execution_error: %w", err)
		}

		req := noderuntime.Request{
			RunID:           runID,
			NodeID:          nodeID,
			ExecutionIndex:  execIndex,
			NodeType:        node.Type,
			Config:          node.Config,
			UpstreamOutputs: toUpstreamMap(upstream),
		}
		result, err := handler(ctx, req)
		if err != nil {
			return StatusFailed, fmt.Errorf("execution_error: node %s: %w", nodeID, err)
		}

		marker := noderuntime.DeriveDegradedMarker(result)
		rec := NodeRunRecord{
			RunID:          runID,
			NodeID:         nodeID,
			ExecutionIndex: execIndex,
			InputContext:   inputContext,
			OutputState:    result.OutputState,
			RoutingState:   result.RoutingState,
			DegradedStatus: marker.Degraded,
			DegradedReason: marker.Reason,
		}
		if err := l.persister.SaveNodeRun(ctx, rec); err != nil {
			return StatusFailed, fmt.Errorf("execution_error: persisting node run %s: %w", nodeID, err)
		}
		l.events.EmitNodeVisited(ctx, runID, rec)

		upstream[nodeID] = upstreamOutput{output: result.OutputState, solid: true}

		if result.TerminateRun {
			l.states.Set(runID, StatusSucceeded)
			l.events.EmitRunTerminal(ctx, runID, StatusSucceeded)
			return StatusSucceeded, nil
		}

		next := RouteNext(node, result.RoutingState)
		queue = append(queue, next...)
	}

	l.states.Set(runID, StatusSucceeded)
	l.events.EmitRunTerminal(ctx, runID, StatusSucceeded)
	return StatusSucceeded, nil
}

// computeInputContext builds a node's input_context: the latest upstream
// solid output, dotted upstream outputs carried as context-only, and an
// aggregate upstream_nodes list (spec §4.9 step 3).
func computeInputContext(node *compiler.GraphNode, upstream map[string]upstreamOutput) map[string]interface{} {
	ctx := map[string]interface{}{}
	if len(node.SolidDependencies) > 0 {
		latest := node.SolidDependencies[len(node.SolidDependencies)-1]
		if up, ok := upstream[latest]; ok {
			ctx["solid_input"] = up.output
		}
	}
	dotted := map[string]interface{}{}
	for _, dep := range node.DottedDependencies {
		if up, ok := upstream[dep]; ok {
			dotted[dep] = up.output
		}
	}
	if len(dotted) > 0 {
		ctx["dotted_context"] = dotted
	}
	var allUpstream []string
	allUpstream = append(allUpstream, node.SolidDependencies...)
	allUpstream = append(allUpstream, node.DottedDependencies...)
	ctx["upstream_nodes"] = allUpstream
	return ctx
}

func toUpstreamMap(upstream map[string]upstreamOutput) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(upstream))
	for id, up := range upstream {
		out[id] = up.output
	}
	return out
}

// RouteNext implements spec §4.9 step 4's edge routing: route_key beats
// matched_connector_ids beats "follow all solid outgoing edges".
func RouteNext(node *compiler.GraphNode, routingState map[string]interface{}) []string {
	if routeKey, ok := routingState["route_key"].(string); ok && routeKey != "" {
		var next []string
		for _, e := range node.OutgoingEdges {
			if e.ConditionKey == routeKey {
				next = append(next, e.TargetNodeID)
			}
		}
		return next
	}

	if ids, ok := routingState["matched_connector_ids"].([]string); ok {
		return routeByConnectorIDs(node, ids)
	}
	if idsIface, ok := routingState["matched_connector_ids"].([]interface{}); ok {
		ids := make([]string, 0, len(idsIface))
		for _, v := range idsIface {
			if s, ok := v.(string); ok {
				ids = append(ids, s)
			}
		}
		return routeByConnectorIDs(node, ids)
	}

	var next []string
	for _, e := range node.OutgoingEdges {
		if e.EdgeMode == compiler.EdgeModeSolid {
			next = append(next, e.TargetNodeID)
		}
	}
	return next
}

func routeByConnectorIDs(node *compiler.GraphNode, ids []string) []string {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var next []string
	for _, e := range node.OutgoingEdges {
		if set[e.ID] {
			next = append(next, e.TargetNodeID)
		}
	}
	return next
}
