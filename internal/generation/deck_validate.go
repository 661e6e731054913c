package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/pkg/jsonx"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

var (
	PenaltyDuplicateTitle = 10
	PenaltyMissingOpening = 15
	PenaltyMissingClose   = 15
	PenaltyCountDrift     = 15
)

type deckFeedbackWire struct {
	OverallScore int           `json:"overall_score"`
	Consistency  dimensionWire `json:"consistency"`
	NarrativeArc dimensionWire `json:"narrative_arc"`
	AudienceFit  dimensionWire `json:"audience_fit"`
	Coverage     dimensionWire `json:"coverage"`
	SlideScores  []int         `json:"slide_scores"`
	MustFix      []string      `json:"must_fix"`
	Improvements []string      `json:"improvements"`
}

// ValidateDeck scores the assembled deck as a whole. LLM path first,
// QuickValidateDeck when the call fails or no client is configured.
func (s *Service) ValidateDeck(ctx context.Context, p deck.Presentation, req deck.GenerationRequest) (deck.DeckFeedback, *FallbackEvent) {
	if s.llm == nil {
		return s.QuickValidateDeck(p, req), &FallbackEvent{
			Stage:  "deck_validation",
			Reason: "no LLM client configured",
			Impact: ImpactNone,
		}
	}
	fb, err := s.llmValidateDeck(ctx, p, req)
	if err != nil {
		s.log.Warn("LLM deck validation failed; using heuristic scoring",
			"error", err.Error(),
		)
		return s.QuickValidateDeck(p, req), &FallbackEvent{
			Stage:  "deck_validation",
			Reason: err.Error(),
			Impact: ImpactMinor,
		}
	}
	return fb, nil
}

func (s *Service) llmValidateDeck(ctx context.Context, p deck.Presentation, req deck.GenerationRequest) (deck.DeckFeedback, error) {
	system, user := promptValidateDeck(p, req)
	out, err := s.llm.Complete(ctx, anthropic.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: 1536,
	})
	if err != nil {
		return deck.DeckFeedback{}, err
	}
	var wire deckFeedbackWire
	if _, err := jsonx.ExtractObject(out.Text, &wire); err != nil {
		return deck.DeckFeedback{}, fmt.Errorf("deck feedback unparseable: %w", err)
	}

	fb := deck.DeckFeedback{
		OverallScore: clampScore(wire.OverallScore),
		Consistency:  coerceDimension(wire.Consistency),
		NarrativeArc: coerceDimension(wire.NarrativeArc),
		AudienceFit:  coerceDimension(wire.AudienceFit),
		Coverage:     coerceDimension(wire.Coverage),
		MustFix:      trimAll(wire.MustFix),
		Improvements: trimAll(wire.Improvements),
	}
	// Per-slide scores from the model are advisory; normalize their length
	// to the deck so refinement targeting can index safely.
	if len(wire.SlideScores) == len(p.Slides) {
		fb.SlideScores = make([]int, len(wire.SlideScores))
		for i, v := range wire.SlideScores {
			fb.SlideScores[i] = clampScore(v)
		}
	} else {
		fb.SlideScores = s.quickSlideScores(p)
	}
	// The deck review returns scores only; per-slide detail comes from the
	// heuristic pass.
	fb.SlideFeedback = s.quickSlideFeedback(p)
	if fb.OverallScore == 0 {
		fb.OverallScore = meanScore(
			fb.Consistency.Score,
			fb.NarrativeArc.Score,
			fb.AudienceFit.Score,
			fb.Coverage.Score,
		)
	}
	return fb, nil
}

// QuickValidateDeck is the deterministic whole-deck path: per-slide quick
// scores aggregated, plus cross-slide structural checks.
func (s *Service) QuickValidateDeck(p deck.Presentation, req deck.GenerationRequest) deck.DeckFeedback {
	consistency := 100
	narrative := 100
	coverage := 100
	var mustFix []string
	var improvements []string

	seen := make(map[string]bool, len(p.Slides))
	for _, sl := range p.Slides {
		key := strings.ToLower(strings.TrimSpace(sl.Title))
		if key == "" {
			continue
		}
		if seen[key] {
			consistency -= PenaltyDuplicateTitle
			improvements = append(improvements, fmt.Sprintf("duplicate slide title %q", sl.Title))
		}
		seen[key] = true
	}

	if len(p.Slides) > 0 {
		if p.Slides[0].Type != deck.SlideTitle {
			narrative -= PenaltyMissingOpening
			improvements = append(improvements, "deck does not open with a title slide")
		}
		if !closesDeck(p.Slides[len(p.Slides)-1].Type) {
			narrative -= PenaltyMissingClose
			improvements = append(improvements, "deck does not end on a closing slide")
		}
	} else {
		narrative = 0
		mustFix = append(mustFix, "deck has no slides")
	}

	if req.SlideCount > 0 && len(p.Slides) != req.SlideCount {
		drift := abs(len(p.Slides) - req.SlideCount)
		coverage -= PenaltyCountDrift * drift
		mustFix = append(mustFix, fmt.Sprintf("deck has %d slides, request asked for %d", len(p.Slides), req.SlideCount))
	}

	slideFeedback := s.quickSlideFeedback(p)
	slideScores := make([]int, len(slideFeedback))
	for i, sf := range slideFeedback {
		slideScores[i] = sf.OverallScore
	}
	audience := meanScore(slideScores...)

	consistency = floorScore(consistency)
	narrative = floorScore(narrative)
	coverage = floorScore(coverage)

	return deck.DeckFeedback{
		OverallScore:  meanScore(consistency, narrative, audience, coverage),
		Consistency:   deck.DimensionScore{Score: consistency, Rationale: "title uniqueness across slides"},
		NarrativeArc:  deck.DimensionScore{Score: narrative, Rationale: "opening and closing slide structure"},
		AudienceFit:   deck.DimensionScore{Score: audience, Rationale: "mean of per-slide heuristic scores"},
		Coverage:      deck.DimensionScore{Score: coverage, Rationale: "slide count against the request"},
		SlideScores:   slideScores,
		SlideFeedback: slideFeedback,
		MustFix:       mustFix,
		Improvements:  improvements,
	}
}

// quickSlideFeedback runs the heuristic slide validator over the deck. The
// outline is not carried on the presentation, so each slide is scored
// against an entry synthesized from itself; type-mismatch penalties are
// the per-slide validator's job.
func (s *Service) quickSlideFeedback(p deck.Presentation) []deck.SlideFeedback {
	feedback := make([]deck.SlideFeedback, len(p.Slides))
	for i, sl := range p.Slides {
		so := deck.SlideOutline{Number: i + 1, Type: sl.Type, Title: sl.Title}
		feedback[i] = s.QuickValidateSlide(sl, so)
	}
	return feedback
}

func (s *Service) quickSlideScores(p deck.Presentation) []int {
	feedback := s.quickSlideFeedback(p)
	scores := make([]int, len(feedback))
	for i, sf := range feedback {
		scores[i] = sf.OverallScore
	}
	return scores
}

func closesDeck(t deck.SlideType) bool {
	switch t {
	case deck.SlideConclusion, deck.SlideAnswer, deck.SlideResult, deck.SlideBridge, deck.SlideHow:
		return true
	}
	return false
}
