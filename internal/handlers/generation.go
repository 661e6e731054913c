package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/deckforge/deckforge-backend/internal/clients/redis"
	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/generation"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
	"github.com/deckforge/deckforge-backend/internal/platform/apierr"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/repos"
	"github.com/deckforge/deckforge-backend/internal/sse"
	"github.com/deckforge/deckforge-backend/internal/types"
)

// GenerationHandler serves the pipeline endpoints. Runs repo, hub, bus,
// and progress store are all optional: each nil dependency just disables
// its feature.
type GenerationHandler struct {
	log      *logger.Logger
	svc      *generation.Service
	baseLLM  anthropic.Client
	recorder generation.CallRecorder
	hub      *sse.Hub
	bus      redis.Bus
	progress redis.ProgressStore
	runs     repos.GenerationRunRepo
}

func NewGenerationHandler(
	log *logger.Logger,
	svc *generation.Service,
	baseLLM anthropic.Client,
	recorder generation.CallRecorder,
	hub *sse.Hub,
	bus redis.Bus,
	progress redis.ProgressStore,
	runs repos.GenerationRunRepo,
) *GenerationHandler {
	return &GenerationHandler{
		log:      log.With("handler", "GenerationHandler"),
		svc:      svc,
		baseLLM:  baseLLM,
		recorder: recorder,
		hub:      hub,
		bus:      bus,
		progress: progress,
		runs:     runs,
	}
}

type generateBody struct {
	deck.GenerationRequest
	APIKey            string               `json:"apiKey,omitempty"`
	FrameworkStrategy string               `json:"framework_strategy,omitempty"`
	ParallelSlides    bool                 `json:"parallel_slides,omitempty"`
	Stream            bool                 `json:"stream,omitempty"`
	Config            *deck.PipelineConfig `json:"config,omitempty"`
}

type generateResponse struct {
	Success          bool                          `json:"success"`
	RunID            string                        `json:"run_id,omitempty"`
	Presentation     deck.Presentation             `json:"presentation"`
	Outline          deck.Outline                  `json:"outline"`
	Framework        generation.FrameworkSelection `json:"framework"`
	ValidationScores validationScores              `json:"validation_scores"`
	Refinement       *generation.RefinementResult  `json:"refinement,omitempty"`
	Fallbacks        []generation.FallbackEvent    `json:"fallbacks,omitempty"`
	TokensUsed       int                           `json:"tokens_used"`
	DurationMS       int64                         `json:"duration_ms"`
}

type validationScores struct {
	Outline deck.OutlineFeedback `json:"outline"`
	Deck    deck.DeckFeedback    `json:"deck"`
}

// POST /api/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	if err := body.GenerationRequest.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	svc, err := h.requestService(body)
	if err != nil {
		RespondMappedError(c, err)
		return
	}
	opts := generation.Options{
		FrameworkStrategy: generation.FrameworkStrategy(strings.TrimSpace(body.FrameworkStrategy)),
		ParallelSlides:    body.ParallelSlides,
	}

	runID := uuid.New()
	h.createRun(c.Request.Context(), runID, body.GenerationRequest)

	if body.Stream || c.Query("stream") == "1" {
		h.generateStreaming(c, svc, body.GenerationRequest, opts, runID)
		return
	}

	opts.OnProgress = h.observer(runID.String())
	res, err := svc.GeneratePresentation(generation.WithRunID(c.Request.Context(), runID), body.GenerationRequest, opts)
	if err != nil {
		h.finishRun(runID, res, err)
		RespondMappedError(c, err)
		return
	}
	h.finishRun(runID, res, nil)
	RespondOK(c, toGenerateResponse(runID, res))
}

// generateStreaming runs the pipeline while relaying progress over SSE on
// the response itself. Exactly one terminal event is written: complete
// with the full result, or error.
func (h *GenerationHandler) generateStreaming(c *gin.Context, svc *generation.Service, req deck.GenerationRequest, opts generation.Options, runID uuid.UUID) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "stream_unsupported", fmt.Errorf("response writer cannot stream"))
		return
	}

	events := make(chan generation.ProgressEvent, 32)
	broadcast := h.observer(runID.String())
	opts.OnProgress = func(ev generation.ProgressEvent) {
		broadcast(ev)
		select {
		case events <- ev:
		default:
		}
	}

	type outcome struct {
		res generation.GenerationResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.GeneratePresentation(generation.WithRunID(c.Request.Context(), runID), req, opts)
		done <- outcome{res, err}
	}()

	writeEvent := func(event string, payload any) {
		raw, err := json.Marshal(payload)
		if err != nil {
			h.log.Warn("failed to marshal stream payload", "error", err)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
		flusher.Flush()
	}

	for {
		select {
		case ev := <-events:
			writeEvent("progress", gin.H{
				"type":     "progress",
				"stage":    ev.Phase,
				"progress": ev.Progress,
				"message":  ev.Message,
				"round":    ev.Round,
				"score":    ev.CurrentScore,
			})
		case out := <-done:
			// Drain progress emitted before completion.
			for {
				select {
				case ev := <-events:
					writeEvent("progress", gin.H{
						"type":     "progress",
						"stage":    ev.Phase,
						"progress": ev.Progress,
						"message":  ev.Message,
					})
					continue
				default:
				}
				break
			}
			h.finishRun(runID, out.res, out.err)
			if out.err != nil {
				writeEvent("error", gin.H{"type": "error", "message": out.err.Error()})
			} else {
				writeEvent("complete", gin.H{"type": "complete", "result": toGenerateResponse(runID, out.res)})
			}
			return
		case <-c.Request.Context().Done():
			out := <-done
			h.finishRun(runID, out.res, c.Request.Context().Err())
			return
		}
	}
}

type refineBody struct {
	Presentation    deck.Presentation      `json:"presentation"`
	OriginalRequest deck.GenerationRequest `json:"originalRequest"`
	APIKey          string                 `json:"apiKey,omitempty"`
	Config          *deck.PipelineConfig   `json:"config,omitempty"`
}

// POST /api/refine
func (h *GenerationHandler) Refine(c *gin.Context) {
	var body refineBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	if len(body.Presentation.Slides) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("presentation has no slides"))
		return
	}
	if err := body.OriginalRequest.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	svc, err := h.requestService(generateBody{APIKey: body.APIKey, Config: body.Config})
	if err != nil {
		RespondMappedError(c, err)
		return
	}

	res, err := svc.RefinePresentation(c.Request.Context(), body.Presentation, body.OriginalRequest, h.observer(body.Presentation.ID))
	if err != nil {
		RespondMappedError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true, "refinement": res})
}

// POST /api/validate
func (h *GenerationHandler) Validate(c *gin.Context) {
	var body refineBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	if len(body.Presentation.Slides) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("presentation has no slides"))
		return
	}

	svc, err := h.requestService(generateBody{APIKey: body.APIKey, Config: body.Config})
	if err != nil {
		RespondMappedError(c, err)
		return
	}

	fb, fallback := svc.ValidateDeck(c.Request.Context(), body.Presentation, body.OriginalRequest)
	resp := gin.H{"success": true, "feedback": fb}
	if fallback != nil {
		resp["fallbacks"] = []generation.FallbackEvent{*fallback}
	}
	RespondOK(c, resp)
}

// requestService applies the per-request API key and config overrides to
// the base service. Errors carry their HTTP status as an apierr so
// RespondMappedError classifies them.
func (h *GenerationHandler) requestService(body generateBody) (*generation.Service, error) {
	svc := h.svc
	if key := strings.TrimSpace(body.APIKey); key != "" {
		if h.baseLLM == nil {
			return nil, apierr.New(http.StatusBadRequest, "invalid_request",
				fmt.Errorf("server has no LLM client; apiKey override unavailable"))
		}
		// The override clones the raw client, so the audit decorator has
		// to be reapplied here.
		svc = svc.WithLLM(generation.LogCalls(anthropic.WithAPIKey(h.baseLLM, key), h.recorder))
	}
	if body.Config != nil {
		svc = svc.WithConfig(*body.Config)
	}
	return svc, nil
}

// observer fans progress out to the hub, the cross-instance bus, and the
// snapshot store. Store failures only log.
func (h *GenerationHandler) observer(channel string) generation.ProgressObserver {
	return func(ev generation.ProgressEvent) {
		msg := sse.Message{Channel: channel, Event: sse.EventProgress, Data: ev}
		if ev.Phase == generation.PhaseRefinement {
			msg.Event = sse.EventRefinement
		}
		if h.hub != nil {
			h.hub.Broadcast(msg)
		}
		ctx := context.Background()
		if h.bus != nil {
			if err := h.bus.Publish(ctx, msg); err != nil {
				h.log.Warn("failed to publish progress", "error", err)
			}
		}
		if h.progress != nil {
			if err := h.progress.Save(ctx, channel, ev); err != nil {
				h.log.Warn("failed to store progress snapshot", "error", err)
			}
		}
	}
}

func (h *GenerationHandler) createRun(ctx context.Context, runID uuid.UUID, req deck.GenerationRequest) {
	if h.runs == nil {
		return
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return
	}
	_, err = h.runs.Create(ctx, nil, &types.GenerationRun{
		ID:         runID,
		Status:     types.RunStatusRunning,
		Phase:      string(generation.PhaseFrameworkSelection),
		SlideCount: req.SlideCount,
		Request:    datatypes.JSON(raw),
	})
	if err != nil {
		h.log.Warn("failed to record generation run", "error", err)
	}
}

// finishRun broadcasts the run's terminal event to attached watchers and
// closes out the session log entry. Persistence is advisory, so a dead
// database never turns a finished generation into a failure.
func (h *GenerationHandler) finishRun(runID uuid.UUID, res generation.GenerationResult, runErr error) {
	h.broadcastTerminal(runID, res, runErr)
	if h.runs == nil {
		return
	}
	ctx := context.Background()
	updates := map[string]interface{}{}
	if runErr != nil {
		updates["status"] = types.RunStatusFailed
		updates["error"] = runErr.Error()
	} else {
		raw, err := json.Marshal(res)
		if err == nil {
			updates["result"] = datatypes.JSON(raw)
		}
		pid, err := uuid.Parse(res.Presentation.ID)
		if err == nil {
			updates["presentation_id"] = pid
		}
		updates["status"] = types.RunStatusSucceeded
		updates["phase"] = string(generation.PhaseComplete)
		updates["progress"] = 100
		updates["framework_id"] = res.Framework.Framework.ID
		updates["slide_count"] = len(res.Presentation.Slides)
		updates["deck_score"] = res.DeckFeedback.OverallScore
		updates["tokens_used"] = res.TokensUsed
	}
	if err := h.runs.UpdateFields(ctx, nil, runID, updates); err != nil {
		h.log.Warn("failed to finalize generation run", "error", err)
	}
}

// broadcastTerminal tells clients following the run over the hub (and any
// other replica via the bus) that it finished. Fallback events go out
// first so watchers see the full degradation record, then exactly one
// completed or failed frame.
func (h *GenerationHandler) broadcastTerminal(runID uuid.UUID, res generation.GenerationResult, runErr error) {
	if h.hub == nil && h.bus == nil {
		return
	}
	channel := runID.String()
	msgs := make([]sse.Message, 0, len(res.Fallbacks)+1)
	if runErr == nil {
		for _, fb := range res.Fallbacks {
			msgs = append(msgs, sse.Message{Channel: channel, Event: sse.EventFallback, Data: fb})
		}
		msgs = append(msgs, sse.Message{Channel: channel, Event: sse.EventCompleted, Data: gin.H{
			"run_id":      channel,
			"deck_score":  res.DeckFeedback.OverallScore,
			"slide_count": len(res.Presentation.Slides),
			"tokens_used": res.TokensUsed,
			"duration_ms": res.DurationMS,
		}})
	} else {
		msgs = append(msgs, sse.Message{Channel: channel, Event: sse.EventFailed, Data: gin.H{
			"run_id": channel,
			"error":  runErr.Error(),
		}})
	}
	for _, msg := range msgs {
		if h.hub != nil {
			h.hub.Broadcast(msg)
		}
		if h.bus != nil {
			if err := h.bus.Publish(context.Background(), msg); err != nil {
				h.log.Warn("failed to publish terminal event", "error", err)
			}
		}
	}
}

func toGenerateResponse(runID uuid.UUID, res generation.GenerationResult) generateResponse {
	return generateResponse{
		Success:      true,
		RunID:        runID.String(),
		Presentation: res.Presentation,
		Outline:      res.Outline,
		Framework:    res.Framework,
		ValidationScores: validationScores{
			Outline: res.OutlineFeedback,
			Deck:    res.DeckFeedback,
		},
		Refinement: res.Refinement,
		Fallbacks:  res.Fallbacks,
		TokensUsed: res.TokensUsed,
		DurationMS: res.DurationMS,
	}
}
