package noderuntime

import "fmt"

// Registry maps a node type tag to its Handler, wired at process start.
// Grounded on spec.md §9: "dynamic dispatch on node subclasses becomes a
// handler registry keyed by node-type tag".
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register wires handler for nodeType, overwriting any prior registration.
func (r *Registry) Register(nodeType string, handler Handler) {
	r.handlers[nodeType] = handler
}

// Lookup returns the handler for nodeType, or an error if none is wired.
func (r *Registry) Lookup(nodeType string) (Handler, error) {
	h, ok := r.handlers[nodeType]
	if !ok {
		return nil, fmt.Errorf("noderuntime: no handler registered for node type %q", nodeType)
	}
	return h, nil
}

// NewDefaultRegistry wires every node type named in spec.md §4.8.
func NewDefaultRegistry(deps Dependencies) *Registry {
	r := NewRegistry()
	r.Register("start", StartHandler)
	r.Register("end", EndHandler)
	r.Register("task", deps.TaskHandler())
	r.Register("decision", deps.DecisionHandler())
	r.Register("memory", deps.MemoryHandler())
	r.Register("milestone", deps.MilestoneHandler())
	r.Register("plan", deps.PlanHandler())
	r.Register("rag", deps.RAGHandler())
	r.Register("flowchart", deps.FlowchartHandler())
	return r
}
