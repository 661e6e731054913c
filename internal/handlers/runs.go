package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deckforge/deckforge-backend/internal/platform/apierr"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/repos"
)

// RunsHandler exposes the persisted generation session log.
type RunsHandler struct {
	log   *logger.Logger
	runs  repos.GenerationRunRepo
	calls repos.LLMCallLogRepo
}

func NewRunsHandler(log *logger.Logger, runs repos.GenerationRunRepo, calls repos.LLMCallLogRepo) *RunsHandler {
	return &RunsHandler{log: log.With("handler", "RunsHandler"), runs: runs, calls: calls}
}

// GET /api/runs/:id
func (h *RunsHandler) GetByID(c *gin.Context) {
	if h.runs == nil {
		RespondMappedError(c, errRunsDisabled())
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid run id"))
		return
	}
	run, err := h.runs.GetByID(c.Request.Context(), nil, runID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if run == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("run %s not found", runID))
		return
	}
	RespondOK(c, gin.H{"run": run})
}

// GET /api/runs?limit=50
func (h *RunsHandler) List(c *gin.Context) {
	if h.runs == nil {
		RespondMappedError(c, errRunsDisabled())
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.runs.List(c.Request.Context(), nil, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"runs": runs})
}

// GET /api/runs/:id/calls?limit=50
func (h *RunsHandler) ListCalls(c *gin.Context) {
	if h.calls == nil {
		RespondMappedError(c, errRunsDisabled())
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid run id"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	calls, err := h.calls.ListByRunID(c.Request.Context(), nil, runID, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"calls": calls})
}

func errRunsDisabled() error {
	return apierr.New(http.StatusServiceUnavailable, "runs_disabled",
		fmt.Errorf("run persistence is not configured"))
}
