package persistence

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisWrapper "github.com/lyzr/orchestrator/common/redis"
	"github.com/lyzr/orchestrator/common/runloop"
)

//go:embed run_state_cas.lua
var runStateCASScript string

const runStatusTTL = 24 * time.Hour

// RedisStateStore is the cross-process runloop.StateStore backing C9's
// pause/resume/cancel state machine. It mirrors
// workflow_lifecycle.StatusManager's dual hot/cold write: Set writes the
// Redis key (hot path, read by Get/CompareAndSet) and queues a status-update
// stream entry (cold path, consumed into C12's durable run record) in one
// pipelined round-trip. CompareAndSet runs the embedded Lua script so the
// read-current/compare/write is atomic, the same pattern
// common/ratelimit.RateLimiter uses for its counter check-and-increment.
//
// runloop.StateStore carries neither a context.Context parameter nor an
// error return, so failures here are logged and degrade to a no-op/false
// result rather than propagated — acceptable for run status, which is
// re-derived from C12's durable FlowchartRun record on any mismatch.
type RedisStateStore struct {
	redis  *redisWrapper.Client
	script *goredis.Script
	logger redisWrapper.Logger
	stream string
}

func NewRedisStateStore(redis *redisWrapper.Client, logger redisWrapper.Logger) *RedisStateStore {
	return &RedisStateStore{
		redis:  redis,
		script: goredis.NewScript(runStateCASScript),
		logger: logger,
		stream: "flowchart_run.status.updates",
	}
}

var _ runloop.StateStore = (*RedisStateStore)(nil)

func runStatusKey(runID string) string {
	return fmt.Sprintf("flowchart_run:status:%s", runID)
}

func (s *RedisStateStore) Get(runID string) (string, bool) {
	value, err := s.redis.Get(context.Background(), runStatusKey(runID))
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *RedisStateStore) Set(runID, status string) {
	ctx := context.Background()
	update, err := json.Marshal(map[string]interface{}{
		"run_id":    runID,
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		s.logger.Error("statestore: marshaling status update", "run_id", runID, "error", err)
		return
	}

	pipeline := s.redis.NewPipeline()
	pipeline.SetWithExpiry(ctx, runStatusKey(runID), status, runStatusTTL)
	pipeline.AddToStream(ctx, s.stream, map[string]interface{}{"update": string(update)})
	if err := pipeline.Exec(ctx); err != nil {
		s.logger.Error("statestore: set failed", "run_id", runID, "status", status, "error", err)
	}
}

func (s *RedisStateStore) CompareAndSet(runID string, from []string, to string) bool {
	ctx := context.Background()
	keys := []string{runStatusKey(runID)}
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, to, int64(runStatusTTL.Seconds()))
	for _, f := range from {
		args = append(args, f)
	}

	result, err := s.script.Run(ctx, s.redis.GetUnderlying(), keys, args...).Result()
	if err != nil {
		s.logger.Error("statestore: compare-and-set failed", "run_id", runID, "to", to, "error", err)
		return false
	}
	applied, _ := result.(int64)
	if applied != 1 {
		return false
	}

	update, err := json.Marshal(map[string]interface{}{
		"run_id":    runID,
		"status":    to,
		"timestamp": time.Now().Unix(),
	})
	if err == nil {
		if _, err := s.redis.GetUnderlying().XAdd(ctx, &goredis.XAddArgs{
			Stream: s.stream,
			Values: map[string]interface{}{"update": string(update)},
		}).Result(); err != nil {
			s.logger.Error("statestore: queuing cold-path update", "run_id", runID, "error", err)
		}
	}
	return true
}
