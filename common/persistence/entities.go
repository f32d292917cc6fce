// Package persistence implements the unit-of-work scopes and per-entity
// repositories over the relational store (§3 data model, §4.12). Entities
// here are the flowchart-run domain's equivalent of common/models: hot,
// frequently-queried columns promoted to struct fields, everything else
// folded into a JSONB `meta`/`config` column.
package persistence

import (
	"time"

	"github.com/google/uuid"
)

// FlowchartNodeType enumerates the vertex kinds a flowchart carries (§3).
type FlowchartNodeType string

const (
	NodeTypeStart      FlowchartNodeType = "start"
	NodeTypeEnd        FlowchartNodeType = "end"
	NodeTypeTask       FlowchartNodeType = "task"
	NodeTypeDecision   FlowchartNodeType = "decision"
	NodeTypeMemory     FlowchartNodeType = "memory"
	NodeTypeMilestone  FlowchartNodeType = "milestone"
	NodeTypePlan       FlowchartNodeType = "plan"
	NodeTypeFlowchart  FlowchartNodeType = "flowchart"
	NodeTypeRAG        FlowchartNodeType = "rag"
)

// EdgeMode is solid (state-carrying) or dotted (context-only) per §3.
type EdgeMode string

const (
	EdgeModeSolid  EdgeMode = "solid"
	EdgeModeDotted EdgeMode = "dotted"
)

// FlowchartRunStatus mirrors runloop's lifecycle constants (kept as a
// distinct type here since persistence must not import runloop).
type FlowchartRunStatus string

const (
	RunStatusQueued    FlowchartRunStatus = "queued"
	RunStatusRunning   FlowchartRunStatus = "running"
	RunStatusPausing   FlowchartRunStatus = "pausing"
	RunStatusPaused    FlowchartRunStatus = "paused"
	RunStatusSucceeded FlowchartRunStatus = "succeeded"
	RunStatusFailed    FlowchartRunStatus = "failed"
	RunStatusCancelled FlowchartRunStatus = "cancelled"
)

// Flowchart is the authoring entity: an ordered set of nodes and directed
// edges, mutable outside a run, immutable during one (§3).
// Maps to: flowchart table
type Flowchart struct {
	FlowchartID uuid.UUID `db:"flowchart_id" json:"flowchart_id"`
	Name        string    `db:"name" json:"name"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Meta        map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FlowchartNode is a typed vertex within a Flowchart (§3).
// Maps to: flowchart_node table
type FlowchartNode struct {
	NodeID      uuid.UUID         `db:"node_id" json:"node_id"`
	FlowchartID uuid.UUID         `db:"flowchart_id" json:"flowchart_id"`
	NodeType    FlowchartNodeType `db:"node_type" json:"node_type"`

	// RefID optionally points at a task template or sub-flowchart.
	RefID *uuid.UUID `db:"ref_id" json:"ref_id,omitempty"`
	// ModelID optionally pins a provider/model selection for this node.
	ModelID *string `db:"model_id" json:"model_id,omitempty"`

	// PositionX/Y are authoring-canvas coordinates; not interpreted by
	// the run loop.
	PositionX *float64 `db:"position_x" json:"position_x,omitempty"`
	PositionY *float64 `db:"position_y" json:"position_y,omitempty"`

	// Config carries the full per-type JSON payload (decision_conditions,
	// route_field_path, action, mode, collections, ...); the run loop and
	// node runtime interpret it per node type rather than this package.
	Config map[string]interface{} `db:"config" json:"config"`
}

// FlowchartEdge connects two nodes within the same Flowchart (§3).
// Maps to: flowchart_edge table
type FlowchartEdge struct {
	EdgeID       uuid.UUID `db:"edge_id" json:"edge_id"`
	FlowchartID  uuid.UUID `db:"flowchart_id" json:"flowchart_id"`
	SourceNodeID uuid.UUID `db:"source_node_id" json:"source_node_id"`
	TargetNodeID uuid.UUID `db:"target_node_id" json:"target_node_id"`
	EdgeMode     EdgeMode  `db:"edge_mode" json:"edge_mode"`
	// ConditionKey is only ever non-nil when SourceNodeID names a decision
	// node; the compiler (C9) re-validates this at compile time regardless
	// of what storage accepted on write.
	ConditionKey *string `db:"condition_key" json:"condition_key,omitempty"`
}

// FlowchartRun is one execution lifecycle over a Flowchart (§3).
// Maps to: flowchart_run table
type FlowchartRun struct {
	RunID       uuid.UUID          `db:"run_id" json:"run_id"`
	FlowchartID uuid.UUID          `db:"flowchart_id" json:"flowchart_id"`
	Status      FlowchartRunStatus `db:"status" json:"status"`

	// IdempotencyKey supports replay-safe resubmission (§4.9 control
	// boundary "retry" action).
	IdempotencyKey *string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	SubmittedBy *string    `db:"submitted_by" json:"submitted_by,omitempty"`
	QueuedAt    time.Time  `db:"queued_at" json:"queued_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`

	// NextIndexAt drives the scheduler (C11) for flows with a recurring
	// cadence; nil for one-shot runs never re-queued by the scheduler.
	NextIndexAt *time.Time `db:"next_index_at" json:"next_index_at,omitempty"`
	CadenceValue int        `db:"cadence_value" json:"cadence_value,omitempty"`
	CadenceUnit  string     `db:"cadence_unit" json:"cadence_unit,omitempty"`
}

// FlowchartRunNode is one execution of a node within a run (§3); lifetime
// equals that of its run.
// Maps to: flowchart_run_node table
type FlowchartRunNode struct {
	RunNodeID      uuid.UUID `db:"run_node_id" json:"run_node_id"`
	RunID          uuid.UUID `db:"run_id" json:"run_id"`
	NodeID         uuid.UUID `db:"node_id" json:"node_id"`
	ExecutionIndex int       `db:"execution_index" json:"execution_index"`

	InputContext map[string]interface{} `db:"input_context_json" json:"input_context_json,omitempty"`
	OutputState  map[string]interface{} `db:"output_state_json" json:"output_state_json,omitempty"`
	RoutingState map[string]interface{} `db:"routing_state_json" json:"routing_state_json,omitempty"`

	DegradedStatus bool   `db:"degraded_status" json:"degraded_status"`
	DegradedReason string `db:"degraded_reason" json:"degraded_reason,omitempty"`

	ResolvedAgent                 *string `db:"resolved_agent" json:"resolved_agent,omitempty"`
	ResolvedRole                  *string `db:"resolved_role" json:"resolved_role,omitempty"`
	ResolvedInstructionManifestHash *string `db:"resolved_instruction_manifest_hash" json:"resolved_instruction_manifest_hash,omitempty"`
	InstructionMaterializedPaths  []string `db:"instruction_materialized_paths" json:"instruction_materialized_paths,omitempty"`

	SelectedProvider   *string `db:"selected_provider" json:"selected_provider,omitempty"`
	FinalProvider       *string `db:"final_provider" json:"final_provider,omitempty"`
	ProviderDispatchID  *string `db:"provider_dispatch_id" json:"provider_dispatch_id,omitempty"`
	WorkspaceIdentity   *string `db:"workspace_identity" json:"workspace_identity,omitempty"`
	DispatchStatus      *string `db:"dispatch_status" json:"dispatch_status,omitempty"`

	FallbackAttempted bool    `db:"fallback_attempted" json:"fallback_attempted"`
	FallbackReason    *string `db:"fallback_reason" json:"fallback_reason,omitempty"`

	APIFailureCategory *string `db:"api_failure_category" json:"api_failure_category,omitempty"`
	CLIFallbackUsed    bool    `db:"cli_fallback_used" json:"cli_fallback_used"`
	CLIPreflightPassed *bool   `db:"cli_preflight_passed" json:"cli_preflight_passed,omitempty"`

	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NodeArtifact is a typed, contract-validated payload emitted per node run
// (§3), indexed by {run_id, node_run_id, artifact_type} and an idempotency
// key computed per §4.1's artifact-key builder.
// Maps to: node_artifact table
type NodeArtifact struct {
	ArtifactID     uuid.UUID `db:"artifact_id" json:"artifact_id"`
	RunID          uuid.UUID `db:"run_id" json:"run_id"`
	RunNodeID      uuid.UUID `db:"run_node_id" json:"run_node_id"`
	ArtifactType   string    `db:"artifact_type" json:"artifact_type"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key"`
	// CasID points at the content-addressed blob holding Payload; Payload
	// itself is kept here too (denormalized) for cheap reads without a
	// CAS round trip, mirroring common/models.Artifact's hot-column split.
	CasID   string                 `db:"cas_id" json:"cas_id"`
	Payload map[string]interface{} `db:"payload" json:"payload"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Agent is an authoring entity consumed by C6/C7 (§3).
// Maps to: agent table
type Agent struct {
	AgentID     uuid.UUID `db:"agent_id" json:"agent_id"`
	Name        string    `db:"name" json:"name"`
	RoleID      *uuid.UUID `db:"role_id" json:"role_id,omitempty"`
	Provider    string    `db:"provider" json:"provider"`
	Markdown    string    `db:"markdown" json:"markdown"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Role is an authoring entity consumed by C6 (§3).
// Maps to: role table
type Role struct {
	RoleID    uuid.UUID `db:"role_id" json:"role_id"`
	Name      string    `db:"name" json:"name"`
	Markdown  string    `db:"markdown" json:"markdown"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Skill is an authoring entity consumed by C7; bound to Agent and/or
// FlowchartNode, ordered by position (§3). SkillID is a plain int, not a
// uuid.UUID: common/skills.ResolvedSkill/SkillVersionInput (C7) carry int
// skill/version ids, and this package converts straight into those types
// in task_resolver.go without an intermediate id translation.
// Maps to: skill table
type Skill struct {
	SkillID   int       `db:"skill_id" json:"skill_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SkillVersion is append-only: each resolve picks the highest-numbered
// version bound to a skill (§3, §4.7).
// Maps to: skill_version table
type SkillVersion struct {
	VersionID    int       `db:"version_id" json:"version_id"`
	SkillID      int       `db:"skill_id" json:"skill_id"`
	Version      int       `db:"version" json:"version"`
	ManifestHash string    `db:"manifest_hash" json:"manifest_hash,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SkillFile is one file within a SkillVersion; §4.7 requires a SKILL.md
// entry point and computes checksum/size_bytes per file.
// Maps to: skill_file table
type SkillFile struct {
	FileID    uuid.UUID `db:"file_id" json:"file_id"`
	VersionID int       `db:"version_id" json:"version_id"`
	Path      string    `db:"path" json:"path"`
	Content   []byte    `db:"content" json:"content,omitempty"`
	Checksum  string    `db:"checksum" json:"checksum"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
}

// AgentSkillBinding orders Agent *..* Skill (§3 Relationships).
// Maps to: agent_skill table
type AgentSkillBinding struct {
	AgentID  uuid.UUID `db:"agent_id" json:"agent_id"`
	SkillID  int       `db:"skill_id" json:"skill_id"`
	Position int       `db:"position" json:"position"`
}

// NodeSkillBinding orders FlowchartNode *..* Skill (§3 Relationships).
// Maps to: flowchart_node_skill table
type NodeSkillBinding struct {
	NodeID   uuid.UUID `db:"node_id" json:"node_id"`
	SkillID  int       `db:"skill_id" json:"skill_id"`
	Position int       `db:"position" json:"position"`
}

// IntegrationSetting is a (provider, key) -> value row; values marked
// secret are encrypted at rest (§3).
// Maps to: integration_setting table
type IntegrationSetting struct {
	Provider  string  `db:"provider" json:"provider"`
	Key       string  `db:"key" json:"key"`
	Value     string  `db:"value" json:"value,omitempty"`
	IsSecret  bool    `db:"is_secret" json:"is_secret"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
