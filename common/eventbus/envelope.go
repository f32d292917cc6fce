package eventbus

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const ContractVersion = "v1"

// RuntimeMetadata is the normalized dispatch-runtime slice attached to an
// envelope, mirroring normalize_runtime_metadata in realtime_events.py and
// the runtime fields produced by common/providers and common/router
// (§4.4/§4.5).
type RuntimeMetadata struct {
	SelectedProvider   string `json:"selected_provider,omitempty"`
	FinalProvider      string `json:"final_provider,omitempty"`
	ProviderDispatchID string `json:"provider_dispatch_id,omitempty"`
	WorkspaceIdentity  string `json:"workspace_identity,omitempty"`
	DispatchStatus     string `json:"dispatch_status,omitempty"`
	ExecutionMode      string `json:"execution_mode,omitempty"`
	FallbackAttempted  bool   `json:"fallback_attempted"`
	FallbackReason     string `json:"fallback_reason,omitempty"`
	DispatchUncertain  bool   `json:"dispatch_uncertain"`
	APIFailureCategory string `json:"api_failure_category,omitempty"`
	CLIFallbackUsed    bool   `json:"cli_fallback_used"`
	CLIPreflightPassed *bool  `json:"cli_preflight_passed,omitempty"`
}

// NormalizeRuntimeMetadata builds a RuntimeMetadata from a loosely typed
// runtime map, or returns nil if runtime is nil. Mirrors
// realtime_events.py's _clean_text/_as_bool coercions.
func NormalizeRuntimeMetadata(runtime map[string]interface{}) *RuntimeMetadata {
	if runtime == nil {
		return nil
	}
	meta := &RuntimeMetadata{
		SelectedProvider:   cleanText(runtime["selected_provider"]),
		FinalProvider:      cleanText(runtime["final_provider"]),
		ProviderDispatchID: cleanText(runtime["provider_dispatch_id"]),
		WorkspaceIdentity:  cleanText(runtime["workspace_identity"]),
		DispatchStatus:     cleanText(runtime["dispatch_status"]),
		ExecutionMode:      cleanText(runtime["execution_mode"]),
		FallbackAttempted:  asBool(runtime["fallback_attempted"]),
		FallbackReason:     cleanText(runtime["fallback_reason"]),
		DispatchUncertain:  asBool(runtime["dispatch_uncertain"]),
		APIFailureCategory: cleanText(runtime["api_failure_category"]),
		CLIFallbackUsed:    asBool(runtime["cli_fallback_used"]),
	}
	if v, present := runtime["cli_preflight_passed"]; present && v != nil {
		b := asBool(v)
		meta.CLIPreflightPassed = &b
	}
	return meta
}

func cleanText(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	default:
		return false
	}
}

// Envelope is the SocketEventEnvelope from spec.md §4.1.
type Envelope struct {
	ContractVersion string                 `json:"contract_version"`
	EventID         string                 `json:"event_id"`
	IdempotencyKey  string                 `json:"idempotency_key"`
	Sequence        int                    `json:"sequence"`
	SequenceStream  string                 `json:"sequence_stream"`
	EmittedAt       string                 `json:"emitted_at"`
	EventType       string                 `json:"event_type"`
	EntityKind      string                 `json:"entity_kind"`
	EntityID        string                 `json:"entity_id"`
	RoomKeys        []string               `json:"room_keys"`
	Runtime         *RuntimeMetadata       `json:"runtime,omitempty"`
	Payload         map[string]interface{} `json:"payload"`
}

// BuildEnvelopeInput is the set of fields a caller supplies to construct an
// Envelope; sequence/event_id/emitted_at are derived.
type BuildEnvelopeInput struct {
	EventType  string
	EntityKind string
	EntityID   string
	RoomKeys   []string
	Payload    map[string]interface{}
	Runtime    map[string]interface{}
}

// BuildEnvelope constructs a SocketEventEnvelope: event_id == idempotency_key
// (a fresh UUID), sequence assigned against "<entity_kind>:<entity_id>" (or
// "<event_type>:global" if entity_id is blank), mirroring
// realtime_events.py's build_event_envelope.
func BuildEnvelope(counters *SequenceCounters, in BuildEnvelopeInput) Envelope {
	entityID := strings.TrimSpace(in.EntityID)
	streamKey := in.EventType + ":global"
	if entityID != "" {
		streamKey = in.EntityKind + ":" + entityID
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	eventID := uuid.NewString()
	return Envelope{
		ContractVersion: ContractVersion,
		EventID:         eventID,
		IdempotencyKey:  eventID,
		Sequence:        counters.Next(streamKey),
		SequenceStream:  streamKey,
		EmittedAt:       time.Now().UTC().Format(time.RFC3339Nano),
		EventType:       in.EventType,
		EntityKind:      in.EntityKind,
		EntityID:        entityID,
		RoomKeys:        CombineRoomKeys(in.RoomKeys),
		Runtime:         NormalizeRuntimeMetadata(in.Runtime),
		Payload:         payload,
	}
}
