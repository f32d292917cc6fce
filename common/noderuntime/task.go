package noderuntime

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/instructions"
	"github.com/lyzr/orchestrator/common/providers"
	"github.com/lyzr/orchestrator/common/router"
	"github.com/lyzr/orchestrator/common/skills"
)

// LLMInvoke is the provider-agnostic seam to an actual LLM call. Concrete
// OpenAI/Gemini/Claude/vLLM wrappers are out of scope (spec.md §1
// Non-goals); callers supply whichever one is configured.
type LLMInvoke func(ctx context.Context, envelope map[string]interface{}) (map[string]interface{}, error)

// TaskResolver supplies the role/agent/priorities markdown and skill set a
// task node needs before compiling its instruction package; it is the
// thin seam to the persistence layer (C12), which owns the actual agent and
// skill-binding records.
type TaskResolver interface {
	ResolveInstructionInput(ctx context.Context, req Request) (instructions.CompileInput, error)
	ResolveSkillSet(ctx context.Context, req Request) (skills.ResolvedSkillSet, error)
}

// NewTaskHandler builds the "task" node handler. Per spec.md §4.8: resolves
// agent/role (C6) and skills (C7), builds a provider-agnostic prompt
// envelope, dispatches through the router (C5) to a provider (C4), and
// parses the provider's output back into output_state.
func NewTaskHandler(resolver TaskResolver, rtr *router.Router, workspaceRoot, runtimeHome string, llmInvoke LLMInvoke) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		compileInput, err := resolver.ResolveInstructionInput(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("noderuntime: resolving instruction input: %w", err)
		}
		pkg, err := instructions.Compile(compileInput)
		if err != nil {
			return Result{}, fmt.Errorf("noderuntime: compiling instructions: %w", err)
		}
		materializedPaths, err := instructions.Materialize(workspaceRoot, "", pkg)
		if err != nil {
			return Result{}, fmt.Errorf("noderuntime: materializing instructions: %w", err)
		}

		skillSet, err := resolver.ResolveSkillSet(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("noderuntime: resolving skill set: %w", err)
		}
		adapterResult, err := skills.MaterializeSkillSet(skillSet, compileInput.Provider, workspaceRoot, skills.HomeRoots{RuntimeHome: runtimeHome})
		if err != nil {
			return Result{}, fmt.Errorf("noderuntime: materializing skills: %w", err)
		}

		userRequest, _ := req.Config["user_request"].(string)
		envelope := map[string]interface{}{
			"system_contract": pkg.Artifacts[instructions.InstructionsFilename],
			"agent_profile":    pkg.Artifacts[instructions.AgentFilename],
			"task_context":     req.UpstreamOutputs,
			"output_contract":  req.Config["output_contract"],
			"user_request":     userRequest,
		}
		if adapterResult.Mode == "fallback" {
			envelope["skill_fallback_entries"] = adapterResult.FallbackEntries
		}

		execReq := providers.ExecutionRequest{
			RunID:          req.RunID,
			NodeID:         req.NodeID,
			ExecutionIndex: req.ExecutionIndex,
			ExecutionID:    contracts.DispatchIdempotencyKey(rtr.Provider, fmt.Sprintf("%s-%s-%d", req.RunID, req.NodeID, req.ExecutionIndex)),
			Payload:        envelope,
		}

		execResult, err := rtr.ExecuteRouted(ctx, execReq, func(ctx context.Context, r providers.ExecutionRequest) (map[string]interface{}, error) {
			return llmInvoke(ctx, envelope)
		})
		if err != nil {
			return Result{}, err
		}
		if execResult.Status != "success" {
			return Result{}, fmt.Errorf("noderuntime: task dispatch failed: %v", execResult.Err)
		}

		output := execResult.Output
		if output == nil {
			output = map[string]interface{}{}
		}
		output["node_type"] = "task"
		output["resolved_agent"] = compileInput.Provider
		output["resolved_role"] = pkg.Artifacts[instructions.RoleFilename]
		output["instruction_manifest_hash"] = pkg.ManifestHash
		output["instruction_materialized_paths"] = materializedPaths

		return Result{
			OutputState:       output,
			RoutingState:      map[string]interface{}{},
			DispatchUncertain: execResult.Metadata.DispatchUncertain,
			FallbackAttempted: execResult.Metadata.FallbackAttempted,
			FallbackReason:    execResult.Metadata.FallbackReason,
			APIFailureCategory: execResult.Metadata.APIFailureCategory,
		}, nil
	}
}
