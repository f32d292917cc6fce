// Package contracts defines the versioned wire shapes for node output,
// routing, artifacts, API errors, and realtime events.
package contracts

import "fmt"

// ContractVersion is the version stamp carried by every runtime shape.
const ContractVersion = "v1"

// NodeOutput is the raw shape returned by a node handler.
type NodeOutput struct {
	NodeType string                 `json:"node_type"`
	Fields   map[string]interface{} `json:"-"`
}

// ValidateNodeOutput checks node_type against the executed node type when
// the caller supplies an expected type.
func ValidateNodeOutput(out NodeOutput, expectedNodeType string) error {
	if out.NodeType == "" {
		return fmt.Errorf("contract_violation: node_output missing node_type")
	}
	if expectedNodeType != "" && out.NodeType != expectedNodeType {
		return fmt.Errorf("contract_violation: node_output node_type=%q does not match expected=%q", out.NodeType, expectedNodeType)
	}
	return nil
}

// RoutingOutput is the routing decision produced alongside a node's output.
type RoutingOutput struct {
	RouteKey            string   `json:"route_key,omitempty"`
	TerminateRun         bool     `json:"terminate_run,omitempty"`
	MatchedConnectorIDs  []string `json:"matched_connector_ids,omitempty"`
	Evaluations          []Evaluation `json:"evaluations,omitempty"`
	NoMatch              bool     `json:"no_match,omitempty"`
	FallbackUsed         bool     `json:"fallback_used,omitempty"`
	FallbackReason       string   `json:"fallback_reason,omitempty"`
}

// Evaluation is one decision-condition evaluation result.
type Evaluation struct {
	ConnectorID string `json:"connector_id"`
	Condition   string `json:"condition_text"`
	Matched     bool   `json:"matched"`
	Reason      string `json:"reason,omitempty"`
}

// ValidateRoutingOutput rejects empty entries in MatchedConnectorIDs and
// non-boolean NoMatch is unrepresentable in Go's type system, so only the
// connector-id check applies here. RouteKey's "non-empty when present" rule
// is enforced by construction: the zero value ("") is always treated as
// absent (via `omitempty`), so a present RouteKey is non-empty by
// definition.
func ValidateRoutingOutput(r RoutingOutput) error {
	for _, id := range r.MatchedConnectorIDs {
		if id == "" {
			return fmt.Errorf("contract_violation: matched_connector_ids contains empty entry")
		}
	}
	return nil
}

// SpecialNodeOutputRequiredKeys holds per-type required fields for decision/memory/
// milestone/plan node outputs, mirroring the runtime contract's required-key
// schemas.
var SpecialNodeOutputRequiredKeys = map[string][]string{
	"decision":  {"node_type", "matched_connector_ids", "evaluations", "no_match"},
	"memory":    {"node_type", "action", "action_results"},
	"milestone": {"node_type", "action", "action_results"},
	"plan":      {"node_type", "mode", "store_mode", "action_results"},
}

// NodeArtifactRequiredKeys mirrors runtime_contracts.py's
// NODE_ARTIFACT_JSON_SCHEMAS required-key lists, keyed by artifact type.
var NodeArtifactRequiredKeys = map[string][]string{
	"decision":  {"matched_connector_ids", "evaluations", "no_match", "routing_state"},
	"end":       {"node_type", "input_context", "output_state", "routing_state"},
	"flowchart": {"node_type", "input_context", "output_state", "routing_state"},
	"memory":    {"action", "action_results", "routing_state"},
	"milestone": {"action", "action_results", "milestone", "routing_state"},
	"plan":      {"mode", "store_mode", "action_results", "plan", "routing_state"},
	"rag":       {"node_type", "input_context", "output_state", "routing_state"},
	"start":     {"node_type", "input_context", "output_state", "routing_state"},
	"task":      {"node_type", "input_context", "output_state", "routing_state"},
}

// ValidateArtifactPayload checks that payload contains every required key
// for artifactType and that its routing_state is an object. The contents
// of routing_state are not validated here; ValidateRoutingOutput does that.
func ValidateArtifactPayload(artifactType string, payload map[string]interface{}) error {
	required, ok := NodeArtifactRequiredKeys[artifactType]
	if !ok {
		return fmt.Errorf("contract_violation: unknown artifact type %q", artifactType)
	}
	var missing []string
	for _, key := range required {
		if _, present := payload[key]; !present {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("contract_violation: artifact %q missing required keys %v", artifactType, missing)
	}
	if _, ok := payload["routing_state"].(map[string]interface{}); !ok {
		return fmt.Errorf("contract_violation: artifact %q routing_state must be an object", artifactType)
	}
	return nil
}

// ApiError is the error payload nested inside ApiErrorEnvelope.
type ApiError struct {
	ContractVersion string                 `json:"contract_version"`
	Code            string                 `json:"code"`
	Message         string                 `json:"message"`
	Details         map[string]interface{} `json:"details,omitempty"`
	RequestID       string                 `json:"request_id"`
}

// ApiErrorEnvelope is the canonical HTTP/socket error shape.
type ApiErrorEnvelope struct {
	OK            bool     `json:"ok"`
	Err           ApiError `json:"error"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// Error implements the error interface so handlers can errors.As into this
// type at the API boundary.
func (e *ApiErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Code, e.Err.Message)
}

// NewApiErrorEnvelope builds an ApiErrorEnvelope with OK=false and the
// contract version stamped.
func NewApiErrorEnvelope(code, message, requestID string, details map[string]interface{}) *ApiErrorEnvelope {
	return &ApiErrorEnvelope{
		OK: false,
		Err: ApiError{
			ContractVersion: ContractVersion,
			Code:            code,
			Message:         message,
			Details:         details,
			RequestID:       requestID,
		},
	}
}
