package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/deckforge/deckforge-backend/internal/clients/redis"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/sse"
)

// StreamHandler lets a client follow an in-flight run by its id, including
// one started by a plain (non-streaming) generate call or on another
// replica when the redis bus is wired.
type StreamHandler struct {
	log      *logger.Logger
	hub      *sse.Hub
	progress redis.ProgressStore
}

func NewStreamHandler(log *logger.Logger, hub *sse.Hub, progress redis.ProgressStore) *StreamHandler {
	return &StreamHandler{
		log:      log.With("handler", "StreamHandler"),
		hub:      hub,
		progress: progress,
	}
}

// GET /api/runs/:id/events
func (h *StreamHandler) Stream(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("id"))
	if runID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("missing run id"))
		return
	}

	client := h.hub.NewClient()
	h.hub.AddChannel(client, runID)
	defer h.hub.CloseClient(client)

	// Replay the latest snapshot so a reconnecting client is not blind
	// until the next event.
	if h.progress != nil {
		if ev, ok, err := h.progress.Load(c.Request.Context(), runID); err == nil && ok {
			h.hub.Broadcast(sse.Message{Channel: runID, Event: sse.EventProgress, Data: ev})
		}
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
