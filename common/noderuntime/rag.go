package noderuntime

import (
	"context"
	"fmt"
)

// RAGQuery is the out-of-scope RAG collaborator's contract (spec.md §1/§6):
// this package only validates node authoring rules and dispatches the call;
// the indexer/chunker implementation lives outside this module.
type RAGQuery func(ctx context.Context, mode string, req Request) (map[string]interface{}, error)

// NewRAGHandler builds the "rag" node handler. Per spec.md §4.8, the node
// operates in one of three modes — query, fresh_index, delta_index — with
// authoring-time validation: collections must be non-empty; query requires
// question_prompt; index modes require an embedding-capable model provider.
func NewRAGHandler(query RAGQuery) Handler {
	return func(ctx context.Context, req Request) (Result, error) {
		mode, _ := req.Config["mode"].(string)
		if mode == "" {
			mode = "query"
		}
		if err := validateRAGConfig(mode, req.Config); err != nil {
			return Result{}, err
		}

		output, err := query(ctx, mode, req)
		if err != nil {
			return Result{}, fmt.Errorf("noderuntime: rag %s failed: %w", mode, err)
		}
		if output == nil {
			output = map[string]interface{}{}
		}
		output["node_type"] = "rag"
		output["mode"] = mode

		return Result{OutputState: output, RoutingState: map[string]interface{}{}}, nil
	}
}

func validateRAGConfig(mode string, config map[string]interface{}) error {
	collections, _ := config["collections"].([]interface{})
	if len(collections) == 0 {
		return fmt.Errorf("noderuntime: rag node requires a non-empty collections list")
	}
	switch mode {
	case "query":
		if q, _ := config["question_prompt"].(string); q == "" {
			return fmt.Errorf("noderuntime: rag query mode requires question_prompt")
		}
	case "fresh_index", "delta_index":
		embeddingCapable, _ := config["embedding_capable_model_provider"].(bool)
		if !embeddingCapable {
			return fmt.Errorf("noderuntime: rag %s mode requires an embedding-capable model provider", mode)
		}
	default:
		return fmt.Errorf("noderuntime: unknown rag mode %q", mode)
	}
	return nil
}
