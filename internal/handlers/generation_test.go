package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/generation"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/sse"
)

type stubClient struct {
	calls int
	err   error
}

func (s *stubClient) Complete(_ context.Context, _ anthropic.CompletionRequest) (anthropic.Completion, error) {
	s.calls++
	if s.err != nil {
		return anthropic.Completion{}, s.err
	}
	return anthropic.Completion{Text: "{}", StopReason: "end_turn"}, nil
}

type memoryRecorder struct {
	records []generation.CallRecord
}

func (m *memoryRecorder) Record(_ context.Context, rec generation.CallRecord) {
	m.records = append(m.records, rec)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func receiveMessage(t *testing.T, client *sse.Client) sse.Message {
	t.Helper()
	select {
	case msg := <-client.Outbound:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message broadcast to attached watcher")
		return sse.Message{}
	}
}

// A watcher attached to a run's channel must get exactly one terminal
// frame, completed or failed.
func TestFinishRunBroadcastsTerminalEvent(t *testing.T) {
	log := testLogger(t)
	hub := sse.NewHub(log)
	h := NewGenerationHandler(log, generation.NewService(log, nil, deck.DefaultPipelineConfig()),
		nil, nil, hub, nil, nil, nil)

	runID := uuid.New()
	client := hub.NewClient()
	hub.AddChannel(client, runID.String())
	defer hub.CloseClient(client)

	res := generation.GenerationResult{
		Presentation: deck.Presentation{Slides: make([]deck.Slide, 5)},
		DeckFeedback: deck.DeckFeedback{OverallScore: 86},
		TokensUsed:   1200,
	}
	h.finishRun(runID, res, nil)

	msg := receiveMessage(t, client)
	if msg.Event != sse.EventCompleted {
		t.Fatalf("event = %q, want %q", msg.Event, sse.EventCompleted)
	}
	if msg.Channel != runID.String() {
		t.Fatalf("channel = %q, want run id", msg.Channel)
	}
}

func TestFinishRunBroadcastsFailure(t *testing.T) {
	log := testLogger(t)
	hub := sse.NewHub(log)
	h := NewGenerationHandler(log, generation.NewService(log, nil, deck.DefaultPipelineConfig()),
		nil, nil, hub, nil, nil, nil)

	runID := uuid.New()
	client := hub.NewClient()
	hub.AddChannel(client, runID.String())
	defer hub.CloseClient(client)

	h.finishRun(runID, generation.GenerationResult{}, errors.New("outline generation failed"))

	msg := receiveMessage(t, client)
	if msg.Event != sse.EventFailed {
		t.Fatalf("event = %q, want %q", msg.Event, sse.EventFailed)
	}
}

func TestFinishRunBroadcastsFallbacksBeforeCompletion(t *testing.T) {
	log := testLogger(t)
	hub := sse.NewHub(log)
	h := NewGenerationHandler(log, generation.NewService(log, nil, deck.DefaultPipelineConfig()),
		nil, nil, hub, nil, nil, nil)

	runID := uuid.New()
	client := hub.NewClient()
	hub.AddChannel(client, runID.String())
	defer hub.CloseClient(client)

	res := generation.GenerationResult{
		Fallbacks: []generation.FallbackEvent{
			{Stage: "outline_generation", Reason: "no LLM client configured", Impact: generation.ImpactModerate},
		},
	}
	h.finishRun(runID, res, nil)

	first := receiveMessage(t, client)
	if first.Event != sse.EventFallback {
		t.Fatalf("first event = %q, want %q", first.Event, sse.EventFallback)
	}
	second := receiveMessage(t, client)
	if second.Event != sse.EventCompleted {
		t.Fatalf("second event = %q, want %q", second.Event, sse.EventCompleted)
	}
}

// Per-request key overrides clone the raw client, so the audit decorator
// has to follow them: every completion still reaches the recorder.
func TestRequestServiceKeyOverrideKeepsAuditTrail(t *testing.T) {
	log := testLogger(t)
	base := &stubClient{err: errors.New("boom")}
	rec := &memoryRecorder{}
	h := NewGenerationHandler(log, generation.NewService(log, nil, deck.DefaultPipelineConfig()),
		base, rec, nil, nil, nil, nil)

	svc, err := h.requestService(generateBody{APIKey: "sk-user-key"})
	if err != nil {
		t.Fatalf("requestService: %v", err)
	}

	p := deck.Presentation{Slides: []deck.Slide{{Type: deck.SlideTitle, Title: "Quarterly Review"}}}
	svc.ValidateDeck(context.Background(), p, deck.GenerationRequest{})

	if base.calls != 1 {
		t.Fatalf("base client calls = %d, want 1", base.calls)
	}
	if len(rec.records) != 1 {
		t.Fatalf("recorded calls = %d, want 1", len(rec.records))
	}
	if rec.records[0].Success || rec.records[0].Error != "boom" {
		t.Fatalf("record = %+v, want failed call captured", rec.records[0])
	}
}

func TestRequestServiceKeyOverrideWithoutClient(t *testing.T) {
	log := testLogger(t)
	h := NewGenerationHandler(log, generation.NewService(log, nil, deck.DefaultPipelineConfig()),
		nil, nil, nil, nil, nil, nil)

	_, err := h.requestService(generateBody{APIKey: "sk-user-key"})
	if err == nil {
		t.Fatal("expected error when no base client exists")
	}
}
