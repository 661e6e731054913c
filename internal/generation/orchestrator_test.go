package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

const frameworkPickText = "problem-solution\nconfidence: 85\nThe brief frames a pain and asks for budget."

func outlineJSON(title string) string {
	return fmt.Sprintf(`{"title": %q, "subtitle": "A pricing pitch", "slides": [
		{"number": 1, "type": "title", "title": "Usage-based pricing", "purpose": "open the pitch", "estimated_tokens": 200},
		{"number": 2, "type": "problem", "title": "Churn is accelerating", "purpose": "establish the pain", "estimated_tokens": 400},
		{"number": 3, "type": "solution", "title": "Meter what customers value", "purpose": "present the model", "estimated_tokens": 400},
		{"number": 4, "type": "benefits", "title": "What we gain", "purpose": "quantify the upside", "estimated_tokens": 400},
		{"number": 5, "type": "conclusion", "title": "The ask", "purpose": "close with next steps", "estimated_tokens": 300}
	]}`, title)
}

func outlineReviewJSON(overall int) string {
	return fmt.Sprintf(`{"overall_score": %d,
		"framework_alignment": {"score": %d}, "logical_flow": {"score": %d},
		"audience_suitability": {"score": %d}, "completeness": {"score": %d}}`,
		overall, overall, overall, overall, overall)
}

func slideReviewJSON(overall int) string {
	return fmt.Sprintf(`{"overall_score": %d,
		"content_quality": {"score": %d}, "readability": {"score": %d},
		"visual_hierarchy": {"score": %d},
		"alignment_with_purpose": {"score": %d, "meets_objective": true}}`,
		overall, overall, overall, overall, overall)
}

const generatedSlideJSON = `{"title": "Generated slide", "layout": "bullets",
	"content": {"layout": "bullets", "bullets": ["First point", "Second point", "Third point"]}}`

// happyPathLLM scripts a full clean run: framework pick, a 5-slide
// outline, passing reviews everywhere, and a deck score over target.
func happyPathLLM(t *testing.T) *fakeLLM {
	t.Helper()
	return &fakeLLM{respond: func(req anthropic.CompletionRequest) (string, error) {
		switch {
		case isFrameworkPrompt(req):
			return frameworkPickText, nil
		case isOutlinePrompt(req):
			return outlineJSON("Usage-based pricing"), nil
		case isOutlineReviewPrompt(req):
			return outlineReviewJSON(88), nil
		case isSlidePrompt(req):
			return generatedSlideJSON, nil
		case isSlideReviewPrompt(req):
			return slideReviewJSON(90), nil
		case isDeckReviewPrompt(req):
			return deckReviewJSON(86, []int{90, 90, 90, 90, 90}), nil
		default:
			return "", fmt.Errorf("unexpected prompt: %q", req.System)
		}
	}}
}

func TestGeneratePresentationHappyPath(t *testing.T) {
	llm := happyPathLLM(t)
	svc := newTestService(t, llm)

	var mu sync.Mutex
	var phases []Phase
	res, err := svc.GeneratePresentation(context.Background(), businessRequest(5), Options{
		OnProgress: func(ev ProgressEvent) {
			mu.Lock()
			phases = append(phases, ev.Phase)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("GeneratePresentation: %v", err)
	}

	if res.Framework.Framework.ID != "problem-solution" {
		t.Fatalf("framework = %q", res.Framework.Framework.ID)
	}
	if res.Framework.Confidence != 85 {
		t.Fatalf("confidence = %d, want 85", res.Framework.Confidence)
	}
	if len(res.Presentation.Slides) != 5 {
		t.Fatalf("slides = %d, want 5", len(res.Presentation.Slides))
	}
	wantTypes := []deck.SlideType{deck.SlideTitle, deck.SlideProblem, deck.SlideSolution, deck.SlideBenefits, deck.SlideConclusion}
	for i, sl := range res.Presentation.Slides {
		if sl.Type != wantTypes[i] {
			t.Fatalf("slide %d type = %q, want %q", i+1, sl.Type, wantTypes[i])
		}
		if sl.ID == "" {
			t.Fatalf("slide %d has no id", i+1)
		}
	}
	if res.Presentation.Metadata.FrameworkID != "problem-solution" {
		t.Fatalf("metadata framework = %q", res.Presentation.Metadata.FrameworkID)
	}
	if res.DeckFeedback.OverallScore != 86 {
		t.Fatalf("deck score = %d, want 86", res.DeckFeedback.OverallScore)
	}
	if res.Refinement != nil {
		t.Fatal("86 is over target, refinement must not run")
	}
	if len(res.Fallbacks) != 0 {
		t.Fatalf("unexpected fallbacks: %+v", res.Fallbacks)
	}
	if res.TokensUsed == 0 {
		t.Fatal("token accounting missing")
	}

	// 1 selection + 1 outline + 1 outline review + 5x(generate+review) + 1 deck review.
	if llm.callCount() != 14 {
		t.Fatalf("llm calls = %d, want 14", llm.callCount())
	}

	if phases[0] != PhaseFrameworkSelection {
		t.Fatalf("first phase = %q", phases[0])
	}
	if phases[len(phases)-1] != PhaseComplete {
		t.Fatalf("last phase = %q", phases[len(phases)-1])
	}
}

func TestGeneratePresentationParallelSlidesPreserveOrder(t *testing.T) {
	svc := newTestService(t, happyPathLLM(t))
	res, err := svc.GeneratePresentation(context.Background(), businessRequest(5), Options{ParallelSlides: true})
	if err != nil {
		t.Fatalf("GeneratePresentation: %v", err)
	}
	wantTypes := []deck.SlideType{deck.SlideTitle, deck.SlideProblem, deck.SlideSolution, deck.SlideBenefits, deck.SlideConclusion}
	for i, sl := range res.Presentation.Slides {
		if sl.Type != wantTypes[i] {
			t.Fatalf("slide %d type = %q, want %q", i+1, sl.Type, wantTypes[i])
		}
	}
}

func TestGeneratePresentationFenceWrappedSlideRecordsFallback(t *testing.T) {
	llm := happyPathLLM(t)
	inner := llm.respond
	llm.respond = func(req anthropic.CompletionRequest) (string, error) {
		if isSlidePrompt(req) && strings.Contains(req.User, "TYPE: problem") {
			return "```json\n" + generatedSlideJSON + "\n```", nil
		}
		return inner(req)
	}
	svc := newTestService(t, llm)

	res, err := svc.GeneratePresentation(context.Background(), businessRequest(5), Options{})
	if err != nil {
		t.Fatalf("GeneratePresentation: %v", err)
	}
	if len(res.Presentation.Slides) != 5 {
		t.Fatalf("slides = %d, want 5", len(res.Presentation.Slides))
	}
	var minor int
	for _, fb := range res.Fallbacks {
		if fb.Impact == ImpactMinor {
			minor++
		}
	}
	if minor == 0 {
		t.Fatalf("fence recovery must record a minor fallback, got %+v", res.Fallbacks)
	}
}

func TestGeneratePresentationOutlineRegeneratedWhenWeak(t *testing.T) {
	// The first outline scores under the regeneration threshold; the
	// second attempt scores higher and must win.
	outlines, reviews := 0, 0
	reviewScores := []int{60, 78}
	llm := happyPathLLM(t)
	inner := llm.respond
	llm.respond = func(req anthropic.CompletionRequest) (string, error) {
		switch {
		case isOutlinePrompt(req):
			outlines++
			return outlineJSON(fmt.Sprintf("Attempt %d", outlines)), nil
		case isOutlineReviewPrompt(req):
			score := reviewScores[reviews]
			reviews++
			return outlineReviewJSON(score), nil
		}
		return inner(req)
	}
	svc := newTestService(t, llm)

	res, err := svc.GeneratePresentation(context.Background(), businessRequest(5), Options{})
	if err != nil {
		t.Fatalf("GeneratePresentation: %v", err)
	}
	if outlines != 2 {
		t.Fatalf("outline generations = %d, want 2", outlines)
	}
	if res.Outline.Title != "Attempt 2" {
		t.Fatalf("kept outline = %q, want the higher-scoring regeneration", res.Outline.Title)
	}
	if res.OutlineFeedback.OverallScore != 78 {
		t.Fatalf("outline score = %d, want 78", res.OutlineFeedback.OverallScore)
	}
}

func TestGeneratePresentationOutlineTieKeepsOriginal(t *testing.T) {
	outlines := 0
	llm := happyPathLLM(t)
	inner := llm.respond
	llm.respond = func(req anthropic.CompletionRequest) (string, error) {
		switch {
		case isOutlinePrompt(req):
			outlines++
			return outlineJSON(fmt.Sprintf("Attempt %d", outlines)), nil
		case isOutlineReviewPrompt(req):
			return outlineReviewJSON(60), nil
		}
		return inner(req)
	}
	svc := newTestService(t, llm)

	res, err := svc.GeneratePresentation(context.Background(), businessRequest(5), Options{})
	if err != nil {
		t.Fatalf("GeneratePresentation: %v", err)
	}
	if res.Outline.Title != "Attempt 1" {
		t.Fatalf("kept outline = %q; a tie keeps the original", res.Outline.Title)
	}
}

func TestGeneratePresentationWithoutClient(t *testing.T) {
	svc := newTestService(t, nil)
	res, err := svc.GeneratePresentation(context.Background(), businessRequest(5), Options{})
	if err != nil {
		t.Fatalf("GeneratePresentation: %v", err)
	}
	if len(res.Presentation.Slides) != 5 {
		t.Fatalf("slides = %d, want 5", len(res.Presentation.Slides))
	}
	if res.Framework.Framework.ID != "problem-solution" {
		t.Fatalf("framework = %q, want the business-type rule", res.Framework.Framework.ID)
	}
	if len(res.Fallbacks) == 0 {
		t.Fatal("a clientless run must record fallback events")
	}
	if res.TokensUsed != 0 {
		t.Fatalf("tokens = %d, want 0 without a client", res.TokensUsed)
	}
	for i, sl := range res.Presentation.Slides {
		if sl.Content.IsEmpty() {
			t.Fatalf("slide %d is empty; template fallback should fill it", i+1)
		}
	}
}

func TestGeneratePresentationRejectsInvalidRequest(t *testing.T) {
	svc := newTestService(t, nil)
	req := businessRequest(5)
	req.SlideCount = 0
	if _, err := svc.GeneratePresentation(context.Background(), req, Options{}); err == nil {
		t.Fatal("expected a validation error")
	}
}
