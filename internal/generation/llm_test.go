package generation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
)

// fakeLLM scripts completions by inspecting the prompt. Every test in
// this package that needs a client goes through it.
type fakeLLM struct {
	mu      sync.Mutex
	calls   []anthropic.CompletionRequest
	respond func(req anthropic.CompletionRequest) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req anthropic.CompletionRequest) (anthropic.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	text, err := f.respond(req)
	if err != nil {
		return anthropic.Completion{}, err
	}
	return anthropic.Completion{Text: text, StopReason: "end_turn"}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, llm LLM) *Service {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewService(log, llm, deck.DefaultPipelineConfig())
}

// Prompt-stage predicates keyed on the system prompts' opening phrases.
func isFrameworkPrompt(req anthropic.CompletionRequest) bool {
	return strings.Contains(req.System, "presentation strategist")
}
func isOutlinePrompt(req anthropic.CompletionRequest) bool {
	return strings.Contains(req.System, "plan presentation decks")
}
func isOutlineReviewPrompt(req anthropic.CompletionRequest) bool {
	return strings.Contains(req.System, "review presentation outlines")
}
func isSlidePrompt(req anthropic.CompletionRequest) bool {
	return strings.Contains(req.System, "write one presentation slide")
}
func isSlideReviewPrompt(req anthropic.CompletionRequest) bool {
	return strings.Contains(req.System, "review one presentation slide")
}
func isDeckReviewPrompt(req anthropic.CompletionRequest) bool {
	return strings.Contains(req.System, "review a whole presentation deck")
}

func businessRequest(slides int) deck.GenerationRequest {
	return deck.GenerationRequest{
		Prompt:           "Pitch our migration to a usage-based pricing model",
		PresentationType: deck.TypeBusiness,
		SlideCount:       slides,
		Audience:         "executive leadership",
		Tone:             deck.ToneExecutive,
	}
}
