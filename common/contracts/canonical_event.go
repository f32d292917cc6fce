package contracts

import (
	"fmt"
	"regexp"
	"strings"
)

// socketEventTypePattern mirrors runtime_contracts.py's
// SOCKET_EVENT_TYPE_PATTERN: exactly three lowercase/digit/underscore
// segments joined by colons, after normalization.
var socketEventTypePattern = regexp.MustCompile(`^[a-z0-9_]+:[a-z0-9_]+:[a-z0-9_]+$`)

var nonCanonicalRun = regexp.MustCompile(`[^a-z0-9_]+`)

// CanonicalSocketEventType normalizes a raw event type string into
// "domain:entity:action" form: split on ':' (or '.' if ':' is absent),
// require at least 3 segments, lowercase each, collapse any run of
// non [a-z0-9_] characters into a single '_', trim leading/trailing '_',
// and rejoin with ':' (extra segments beyond the third collapse into the
// action segment, joined by '_').
func CanonicalSocketEventType(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", fmt.Errorf("contract_violation: event_type is required")
	}

	delimiter := ":"
	if !strings.Contains(trimmed, ":") {
		delimiter = "."
	}

	var parts []string
	for _, part := range strings.Split(trimmed, delimiter) {
		parts = append(parts, strings.TrimSpace(part))
	}
	if len(parts) < 3 {
		return "", fmt.Errorf("contract_violation: event_type %q must normalize to at least 3 segments", raw)
	}

	normalized := make([]string, len(parts))
	for i, part := range parts {
		cleaned := nonCanonicalRun.ReplaceAllString(part, "_")
		cleaned = strings.Trim(cleaned, "_")
		if cleaned == "" {
			return "", fmt.Errorf("contract_violation: event_type segment %q normalizes to empty", part)
		}
		normalized[i] = cleaned
	}

	domain := normalized[0]
	entity := normalized[1]
	action := strings.Join(normalized[2:], "_")

	result := fmt.Sprintf("%s:%s:%s", domain, entity, action)
	if !socketEventTypePattern.MatchString(result) {
		return "", fmt.Errorf("contract_violation: normalized event_type %q does not match canonical pattern", result)
	}
	return result, nil
}

// SocketEventEnvelope is the canonical realtime-bus wire shape (§4.1).
type SocketEventEnvelope struct {
	ContractVersion string                 `json:"contract_version"`
	EventID         string                 `json:"event_id"`
	IdempotencyKey  string                 `json:"idempotency_key"`
	Sequence        int64                  `json:"sequence"`
	SequenceStream  string                 `json:"sequence_stream"`
	EmittedAt       string                 `json:"emitted_at"`
	EventType       string                 `json:"event_type"`
	EntityKind      string                 `json:"entity_kind"`
	EntityID        string                 `json:"entity_id"`
	RoomKeys        []string               `json:"room_keys"`
	Runtime         map[string]interface{} `json:"runtime,omitempty"`
	Payload         map[string]interface{} `json:"payload"`
}

// NodeRunIdempotencyKey builds the deterministic node-run idempotency key.
func NodeRunIdempotencyKey(runID, nodeID string, executionIndex int) string {
	return fmt.Sprintf("flowchart_run:%s:flowchart_node:%s:execution:%d", runID, nodeID, executionIndex)
}

// ArtifactIdempotencyKey builds the deterministic artifact idempotency key.
func ArtifactIdempotencyKey(runID, nodeRunKey, artifactType string) string {
	return fmt.Sprintf("flowchart_run:%s:node_run:%s:artifact:%s", runID, nodeRunKey, artifactType)
}

// DispatchIdempotencyKey builds the deterministic provider dispatch key.
func DispatchIdempotencyKey(provider, executionID string) string {
	return fmt.Sprintf("%s:%s", provider, executionID)
}
