package noderuntime

import (
	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/lyzr/orchestrator/common/router"
)

// Dependencies carries every collaborator the non-trivial node handlers
// need, so NewDefaultRegistry can wire the full §4.8 handler set from one
// value built once at process start.
type Dependencies struct {
	Registry *idempotency.Registry
	Router   *router.Router

	CELEvaluator *CELEvaluator

	MemoryInvoker    MemoryToolInvoker
	MilestoneInvoker DeterministicToolInvoker
	PlanInvoker      DeterministicToolInvoker

	TaskResolver  TaskResolver
	LLMInvoke     LLMInvoke
	WorkspaceRoot string
	RuntimeHome   string

	RAGQuery      RAGQuery
	SubflowRunner SubflowRunner
}

func (d Dependencies) registry() *idempotency.Registry {
	if d.Registry != nil {
		return d.Registry
	}
	return idempotency.Default
}

func (d Dependencies) celEvaluator() *CELEvaluator {
	if d.CELEvaluator != nil {
		return d.CELEvaluator
	}
	return NewCELEvaluator()
}

// TaskHandler builds the task handler from these dependencies.
func (d Dependencies) TaskHandler() Handler {
	return NewTaskHandler(d.TaskResolver, d.Router, d.WorkspaceRoot, d.RuntimeHome, d.LLMInvoke)
}

// DecisionHandler builds the decision handler from these dependencies.
func (d Dependencies) DecisionHandler() Handler {
	return NewDecisionHandler(d.registry(), d.celEvaluator())
}

// MemoryHandler builds the memory handler from these dependencies.
func (d Dependencies) MemoryHandler() Handler {
	return NewMemoryHandler(d.registry(), d.MemoryInvoker)
}

// MilestoneHandler builds the milestone handler from these dependencies.
func (d Dependencies) MilestoneHandler() Handler {
	return NewMilestoneHandler(d.registry(), d.MilestoneInvoker)
}

// PlanHandler builds the plan handler from these dependencies.
func (d Dependencies) PlanHandler() Handler {
	return NewPlanHandler(d.registry(), d.PlanInvoker)
}

// RAGHandler builds the rag handler from these dependencies.
func (d Dependencies) RAGHandler() Handler {
	return NewRAGHandler(d.RAGQuery)
}

// FlowchartHandler builds the flowchart handler from these dependencies.
func (d Dependencies) FlowchartHandler() Handler {
	return NewFlowchartHandler(d.SubflowRunner)
}
