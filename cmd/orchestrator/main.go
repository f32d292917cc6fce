// Command orchestrator assembles the flowchart execution engine (C4
// providers through C12 persistence) behind a thin HTTP boundary: submit a
// run, control it, and read back its trace/status (spec.md §6). It owns no
// business logic of its own — every operation it exposes delegates straight
// into the wired components.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lyzr/orchestrator/cmd/orchestrator/middleware"
	"github.com/lyzr/orchestrator/common/config"
	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/common/eventbus"
	"github.com/lyzr/orchestrator/common/idempotency"
	"github.com/lyzr/orchestrator/common/logger"
	commonMiddleware "github.com/lyzr/orchestrator/common/middleware"
	"github.com/lyzr/orchestrator/common/noderuntime"
	"github.com/lyzr/orchestrator/common/persistence"
	"github.com/lyzr/orchestrator/common/providers"
	"github.com/lyzr/orchestrator/common/ratelimit"
	redisWrapper "github.com/lyzr/orchestrator/common/redis"
	"github.com/lyzr/orchestrator/common/router"
	"github.com/lyzr/orchestrator/common/runloop"
	"github.com/lyzr/orchestrator/common/scheduler"
	"github.com/lyzr/orchestrator/common/telemetry"
)

func main() {
	cfg, err := config.Load("orchestrator")
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator: loading config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg, log)
	if err != nil {
		log.Error("connecting to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	rawRedis := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rawRedis.Close()
	redisClient := redisWrapper.NewClient(rawRedis, log)

	registry := idempotency.NewRegistry()

	workspaceExec := providers.NewWorkspaceExecutor(registry)
	k8sExec, err := providers.NewKubernetesExecutor(providers.KubernetesConfig{
		Namespace:      cfg.Provider.K8sNamespace,
		Image:          cfg.Provider.K8sImage,
		InCluster:      cfg.Provider.K8sInCluster,
		ServiceAccount: cfg.Provider.K8sServiceAccount,
		GPULimit:       cfg.Provider.K8sGPULimit,
		JobTTLSeconds:  cfg.Provider.K8sJobTTLSeconds,
		Kubeconfig:     cfg.Provider.K8sKubeconfig,
	})
	if err != nil {
		log.Error("building kubernetes executor", "error", err)
		os.Exit(1)
	}
	rtr := router.New(cfg.Provider.Default, cfg.Provider.WorkspaceIdentity, workspaceExec, k8sExec)

	taskResolver := persistence.NewTaskResolver(database)
	toolStore := persistence.NewRedisToolStore(redisClient)
	documentStore := persistence.NewRedisDocumentStore(redisClient)

	publisher := eventbus.NewRedisPublisher(rawRedis)
	bus := eventbus.NewBus(publisher, eventbus.NewSequenceCounters(), cfg.Service.Name)
	flowchartOf := func(runID string) string { return flowchartIDForRun(ctx, database, log, runID) }
	events := eventbus.NewRunEventEmitter(bus, flowchartOf)

	persister := persistence.NewRunPersister(database)
	scheduleStore := persistence.NewRunScheduleStore(database)
	states := persistence.NewRedisStateStore(redisClient, log)

	engine := NewEngine(database, log, nil, states, persister, events, nil)

	deps := noderuntime.Dependencies{
		Registry:         registry,
		Router:           rtr,
		MemoryInvoker:    toolStore.MemoryInvoke,
		MilestoneInvoker: toolStore.MilestoneInvoke,
		PlanInvoker:      toolStore.PlanInvoke,
		TaskResolver:     taskResolver,
		LLMInvoke:        engine.LLMInvoke,
		WorkspaceRoot:    cfg.InstructionPolicy.WorkspaceRoot,
		RuntimeHome:      cfg.SkillPolicy.RuntimeHome,
		RAGQuery:         documentStore.RAGInvoke,
		SubflowRunner:    engine.SubflowRunner,
	}
	nodeRegistry := noderuntime.NewDefaultRegistry(deps)
	engine.registry = nodeRegistry

	cancelFunc := func(runID string) {
		log.Info("control: cancel requested", "run_id", runID)
	}
	controller := runloop.NewController(states, runloop.NewReplayRegistry(), cancelFunc)
	engine.controller = controller

	sched := scheduler.NewScheduler(scheduleStore, log, cfg.Scheduler.PollInterval)
	go func() {
		if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduler stopped", "error", err)
		}
	}()
	go engine.PollQueuedRuns(ctx, cfg.Scheduler.PollInterval)

	rateLimiter := ratelimit.NewRateLimiter(rawRedis, log)

	if cfg.Telemetry.EnablePprof {
		tel := telemetry.New(cfg.Telemetry.PprofPort, cfg.Telemetry.MetricsPort, log)
		if err := tel.Start(ctx); err != nil {
			log.Error("starting telemetry", "error", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.ExtractUsername())
	e.Use(commonMiddleware.GlobalRateLimitMiddleware(rateLimiter, 1000))
	e.Use(commonMiddleware.UserRateLimitMiddleware(rateLimiter, 100))

	h := &handlers{engine: engine, database: database, log: log}
	e.GET("/healthz", h.health)
	e.POST("/flowcharts/:flowchart_id/runs", h.submitRun)
	e.POST("/runs/:run_id/control", h.control)
	e.GET("/runs/:run_id/trace", h.trace)
	e.GET("/runs/:run_id/status", h.status)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Service.Port)
		log.Info("orchestrator listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("orchestrator shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
}

// flowchartIDForRun resolves a run id to its owning flowchart id for
// eventbus room addressing; a lookup failure degrades to an empty scope
// rather than blocking the emit.
func flowchartIDForRun(ctx context.Context, database *db.DB, log *logger.Logger, runID string) string {
	parsed, err := uuid.Parse(runID)
	if err != nil {
		return ""
	}
	var flowchartID string
	err = persistence.SessionScope(ctx, database, func(ctx context.Context, sess *persistence.Session) error {
		run, err := persistence.NewFlowchartRunRepository(sess).GetByID(ctx, parsed)
		if err != nil {
			return err
		}
		flowchartID = run.FlowchartID.String()
		return nil
	})
	if err != nil {
		log.Error("resolving flowchart for run", "run_id", runID, "error", err)
		return ""
	}
	return flowchartID
}
