package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/pkg/jsonx"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

type outlineWire struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Slides   []struct {
		Number          int    `json:"number"`
		Type            string `json:"type"`
		Title           string `json:"title"`
		Purpose         string `json:"purpose"`
		EstimatedTokens int    `json:"estimated_tokens"`
	} `json:"slides"`
}

// GenerateOutline plans the deck with one LLM call. Parse failure is a hard
// failure for this call: the caller retries or aborts, there is no local
// fallback outline.
func (s *Service) GenerateOutline(ctx context.Context, req deck.GenerationRequest, fw deck.Framework) (deck.Outline, jsonx.Extraction, error) {
	if s.llm == nil {
		return deck.Outline{}, jsonx.Extraction{}, fmt.Errorf("outline generation requires an LLM client")
	}

	system, user := promptGenerateOutline(req, fw)
	out, err := s.llm.Complete(ctx, anthropic.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: 2048,
	})
	if err != nil {
		return deck.Outline{}, jsonx.Extraction{}, err
	}

	var wire outlineWire
	ex, err := jsonx.ExtractObject(out.Text, &wire)
	if err != nil {
		return deck.Outline{}, ex, fmt.Errorf("outline response unparseable: %w", err)
	}
	if len(wire.Slides) == 0 {
		return deck.Outline{}, ex, fmt.Errorf("outline response has no slides")
	}

	return normalizeOutline(wire, req, fw), ex, nil
}

// normalizeOutline pins the model's plan to the request: exactly SlideCount
// entries numbered from 1, types coerced onto the framework sequence when
// missing or unknown.
func normalizeOutline(wire outlineWire, req deck.GenerationRequest, fw deck.Framework) deck.Outline {
	seq := fw.SlideSequenceFor(req.SlideCount)

	slides := make([]deck.SlideOutline, req.SlideCount)
	total := 0
	for i := 0; i < req.SlideCount; i++ {
		so := deck.SlideOutline{Number: i + 1, Type: seq[i]}
		if i < len(wire.Slides) {
			w := wire.Slides[i]
			so.Title = strings.TrimSpace(w.Title)
			so.Purpose = strings.TrimSpace(w.Purpose)
			so.EstimatedTokens = w.EstimatedTokens
			if t := deck.SlideType(strings.ToLower(strings.TrimSpace(w.Type))); knownSlideType(t) {
				so.Type = t
			}
		}
		if so.Title == "" {
			so.Title = fmt.Sprintf("Slide %d", i+1)
		}
		if so.EstimatedTokens <= 0 {
			so.EstimatedTokens = 400
		}
		total += so.EstimatedTokens
		slides[i] = so
	}

	title := strings.TrimSpace(wire.Title)
	if title == "" {
		title = clampText(req.Prompt, 80)
	}

	return deck.Outline{
		Title:                title,
		Subtitle:             strings.TrimSpace(wire.Subtitle),
		FrameworkID:          fw.ID,
		TotalEstimatedTokens: total,
		Slides:               slides,
	}
}

func knownSlideType(t deck.SlideType) bool {
	switch t {
	case deck.SlideTitle, deck.SlideProblem, deck.SlideSolution, deck.SlideBenefits,
		deck.SlideImplementation, deck.SlideConclusion, deck.SlideSituation,
		deck.SlideComplication, deck.SlideQuestion, deck.SlideAnswer,
		deck.SlideAgitation, deck.SlideTask, deck.SlideAction, deck.SlideResult,
		deck.SlideBefore, deck.SlideAfter, deck.SlideBridge,
		deck.SlideWhat, deck.SlideWhy, deck.SlideHow, deck.SlideContentGeneric:
		return true
	default:
		return false
	}
}
