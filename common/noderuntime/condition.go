package noderuntime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELEvaluator evaluates decision conditions with a compiled-program cache.
// Adapted from cmd/workflow-runner/condition/evaluator.go, generalized to
// expose the two variables a decision condition needs: the upstream output
// map ("output") and the full upstream-outputs-by-node context ("ctx").
type CELEvaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEvaluator builds an evaluator with an empty program cache.
func NewCELEvaluator() *CELEvaluator {
	return &CELEvaluator{cache: make(map[string]cel.Program)}
}

// Evaluate compiles (or reuses a cached compilation of) expr and runs it
// against output/ctx, requiring a boolean result.
func (e *CELEvaluator) Evaluate(expr string, output interface{}, ctx map[string]interface{}) (bool, error) {
	normalized := strings.ReplaceAll(expr, "$.", "output.")

	e.mu.RLock()
	prg, ok := e.cache[normalized]
	e.mu.RUnlock()

	if !ok {
		var err error
		prg, err = e.compile(normalized)
		if err != nil {
			return false, err
		}
		e.mu.Lock()
		e.cache[normalized] = prg
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(map[string]interface{}{"output": output, "ctx": ctx})
	if err != nil {
		return false, fmt.Errorf("noderuntime: CEL evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("noderuntime: CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

func (e *CELEvaluator) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(cel.Variable("output", cel.DynType), cel.Variable("ctx", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("noderuntime: creating CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("noderuntime: CEL compilation error: %w", issues.Err())
	}
	return env.Program(ast)
}
