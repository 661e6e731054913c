package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/pkg/jsonx"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

// OutlineRegenThreshold is the fixed score below which the orchestrator
// attempts exactly one outline regeneration.
const OutlineRegenThreshold = 70

type outlineFeedbackWire struct {
	OverallScore        int               `json:"overall_score"`
	FrameworkAlignment  dimensionWire     `json:"framework_alignment"`
	LogicalFlow         dimensionWire     `json:"logical_flow"`
	AudienceSuitability dimensionWire     `json:"audience_suitability"`
	Completeness        dimensionWire     `json:"completeness"`
	MustFix             []string          `json:"must_fix"`
	Improvements        []string          `json:"improvements"`
}

type dimensionWire struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// ValidateOutline scores the outline with one LLM call. Callers fall back
// to QuickValidateOutline when it errors.
func (s *Service) ValidateOutline(ctx context.Context, outline deck.Outline, req deck.GenerationRequest, fw deck.Framework) (deck.OutlineFeedback, error) {
	if s.llm == nil {
		return deck.OutlineFeedback{}, fmt.Errorf("no LLM client configured")
	}
	system, user := promptValidateOutline(outline, req, fw)
	out, err := s.llm.Complete(ctx, anthropic.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: 1024,
	})
	if err != nil {
		return deck.OutlineFeedback{}, err
	}
	var wire outlineFeedbackWire
	if _, err := jsonx.ExtractObject(out.Text, &wire); err != nil {
		return deck.OutlineFeedback{}, fmt.Errorf("outline feedback unparseable: %w", err)
	}
	fb := deck.OutlineFeedback{
		OverallScore:        clampScore(wire.OverallScore),
		FrameworkAlignment:  coerceDimension(wire.FrameworkAlignment),
		LogicalFlow:         coerceDimension(wire.LogicalFlow),
		AudienceSuitability: coerceDimension(wire.AudienceSuitability),
		Completeness:        coerceDimension(wire.Completeness),
		MustFix:             trimAll(wire.MustFix),
		Improvements:        trimAll(wire.Improvements),
	}
	if fb.OverallScore == 0 {
		fb.OverallScore = meanScore(
			fb.FrameworkAlignment.Score,
			fb.LogicalFlow.Score,
			fb.AudienceSuitability.Score,
			fb.Completeness.Score,
		)
	}
	return fb, nil
}

// QuickValidateOutline is the cheap deterministic pass used to re-score
// regenerated candidates and to serve as the no-credential fallback.
func (s *Service) QuickValidateOutline(outline deck.Outline, req deck.GenerationRequest, fw deck.Framework) deck.OutlineFeedback {
	seq := fw.SlideSequenceFor(req.SlideCount)

	aligned := 0
	flowing := 0
	purposeful := 0
	for i, so := range outline.Slides {
		if i < len(seq) && so.Type == seq[i] {
			aligned++
		}
		if so.Number == i+1 && strings.TrimSpace(so.Title) != "" {
			flowing++
		}
		if strings.TrimSpace(so.Purpose) != "" {
			purposeful++
		}
	}

	n := len(outline.Slides)
	alignScore := fractionScore(aligned, n)
	flowScore := fractionScore(flowing, n)
	audienceScore := fractionScore(purposeful, n)

	completeness := 100
	if diff := abs(n - req.SlideCount); diff > 0 {
		completeness -= 15 * diff
		if completeness < 0 {
			completeness = 0
		}
	}

	fb := deck.OutlineFeedback{
		FrameworkAlignment:  deck.DimensionScore{Score: alignScore, Rationale: fmt.Sprintf("%d/%d slide types follow the framework sequence", aligned, n)},
		LogicalFlow:         deck.DimensionScore{Score: flowScore, Rationale: "sequential numbering and titled slides"},
		AudienceSuitability: deck.DimensionScore{Score: audienceScore, Rationale: "slides with a stated purpose"},
		Completeness:        deck.DimensionScore{Score: completeness, Rationale: fmt.Sprintf("%d slides planned, %d requested", n, req.SlideCount)},
	}
	fb.OverallScore = meanScore(
		fb.FrameworkAlignment.Score,
		fb.LogicalFlow.Score,
		fb.AudienceSuitability.Score,
		fb.Completeness.Score,
	)
	if n == 0 {
		fb.OverallScore = 0
		fb.MustFix = append(fb.MustFix, "outline has no slides")
	}
	return fb
}

func coerceDimension(w dimensionWire) deck.DimensionScore {
	return deck.DimensionScore{Score: clampScore(w.Score), Rationale: strings.TrimSpace(w.Rationale)}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func meanScore(scores ...int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return sum / len(scores)
}

func fractionScore(have, total int) int {
	if total <= 0 {
		return 0
	}
	return clampScore(have * 100 / total)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
