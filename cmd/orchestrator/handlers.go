package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/orchestrator/cmd/orchestrator/middleware"
	"github.com/lyzr/orchestrator/common/contracts"
	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/common/logger"
	"github.com/lyzr/orchestrator/common/persistence"
	"github.com/lyzr/orchestrator/common/runloop"
)

// handlers exposes the thin HTTP boundary spec.md §6 describes
// (submit_run/control/trace/status) over an *Engine.
type handlers struct {
	engine   *Engine
	database *db.DB
	log      *logger.Logger
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// submitRun implements spec.md §4.9 step 1 / §6's submit_run boundary.
func (h *handlers) submitRun(c echo.Context) error {
	flowchartID, err := uuid.Parse(c.Param("flowchart_id"))
	if err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_flowchart_id", err)
	}

	submittedBy := middleware.GetUsername(c)
	runID, err := h.engine.SubmitRun(c.Request().Context(), flowchartID, submittedBy)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, "submit_run_failed", err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
}

type controlRequest struct {
	Action         string `json:"action"`
	IdempotencyKey string `json:"idempotency_key"`
}

// control implements spec.md §4.9 step 5 / §6's control boundary
// (pause/resume/cancel/retry), all idempotent per §7.
func (h *handlers) control(c echo.Context) error {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_run_id", err)
	}

	var req controlRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_control_request", err)
	}

	var result runloop.ControlResult
	switch req.Action {
	case runloop.ActionPause:
		result = h.engine.controller.Pause(runID)
	case runloop.ActionResume:
		result = h.engine.controller.Resume(runID)
	case runloop.ActionCancel:
		result = h.engine.controller.Cancel(runID)
	case runloop.ActionRetry:
		if req.IdempotencyKey == "" {
			return apiError(c, http.StatusBadRequest, "idempotency_key_required", nil)
		}
		result = h.engine.controller.Retry(runID, req.IdempotencyKey, func(sourceRunID string) string {
			return h.enqueueReplay(c, sourceRunID)
		})
	default:
		return apiError(c, http.StatusBadRequest, "unknown_control_action", nil)
	}
	return c.JSON(http.StatusOK, result)
}

// enqueueReplay mints a new run for sourceRunID's flowchart and starts it;
// used as Controller.Retry's enqueueReplay callback. On any lookup/submit
// failure it still returns a run id, per Retry's contract that the callback
// always produces one; the id just never advances since no run row backs
// it, which surfaces to the caller as a trace/status lookup failure.
func (h *handlers) enqueueReplay(c echo.Context, sourceRunID string) string {
	ctx := c.Request().Context()
	source, err := uuid.Parse(sourceRunID)
	if err != nil {
		h.log.Error("retry: invalid source run id", "run_id", sourceRunID, "error", err)
		return runloop.NewRunID()
	}

	flowchartID, err := h.flowchartIDFor(ctx, source)
	if err != nil {
		h.log.Error("retry: resolving source run's flowchart", "run_id", sourceRunID, "error", err)
		return runloop.NewRunID()
	}

	newRunID, err := h.engine.SubmitRun(ctx, flowchartID, middleware.GetUsername(c))
	if err != nil {
		h.log.Error("retry: submitting replay run", "run_id", sourceRunID, "error", err)
		return runloop.NewRunID()
	}
	return newRunID
}

// trace implements spec.md §4.9 step 6 / §6's trace boundary.
func (h *handlers) trace(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_run_id", err)
	}

	degradedOnly, _ := strconv.ParseBool(c.QueryParam("degraded_only"))
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	trace, err := h.engine.Trace(c.Request().Context(), runID, degradedOnly, limit)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, "trace_failed", err)
	}
	return c.JSON(http.StatusOK, trace)
}

// status implements §6's status boundary: live state plus warning summary.
func (h *handlers) status(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		return apiError(c, http.StatusBadRequest, "invalid_run_id", err)
	}

	status, err := h.engine.Status(c.Request().Context(), runID)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, "status_failed", err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *handlers) flowchartIDFor(ctx context.Context, runID uuid.UUID) (uuid.UUID, error) {
	var flowchartID uuid.UUID
	err := persistence.SessionScope(ctx, h.database, func(ctx context.Context, sess *persistence.Session) error {
		run, err := persistence.NewFlowchartRunRepository(sess).GetByID(ctx, runID)
		if err != nil {
			return err
		}
		flowchartID = run.FlowchartID
		return nil
	})
	return flowchartID, err
}

func apiError(c echo.Context, status int, code string, err error) error {
	message := code
	if err != nil {
		message = err.Error()
	}
	envelope := contracts.NewApiErrorEnvelope(code, message, c.Response().Header().Get(echo.HeaderXRequestID), nil)
	return c.JSON(status, envelope)
}
