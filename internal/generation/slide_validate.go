package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/pkg/jsonx"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

// Quick-validation penalty weights. These are tuning constants, not hard
// invariants; tests pin the current values but they are deliberately vars.
var (
	PenaltyEmptyContent = 30
	PenaltyShortTitle   = 20
	PenaltyTypeMismatch = 30
	PenaltyMissingField = 10
	PenaltyHighLoad     = 20
)

// Cognitive-load weights for the "7 plus or minus 2 items" rule.
const (
	loadWeightBullet  = 1
	loadWeightSection = 2
	loadWeightMetric  = 1
	loadWeightChart   = 3
	loadWeightTable   = 4
)

// AssessCognitiveLoad buckets a slide's weighted item count:
// low <=5, medium 6-9, high >9.
func AssessCognitiveLoad(c deck.SlideContent) (weighted int, bucket string) {
	weighted = len(c.Bullets)*loadWeightBullet +
		len(c.Sections)*loadWeightSection +
		len(c.Metrics)*loadWeightMetric
	if c.Diagram != nil {
		weighted += loadWeightChart
	}
	if c.Chart != nil {
		weighted += loadWeightChart
	}
	if c.Table != nil {
		weighted += loadWeightTable
	}
	switch {
	case weighted <= 5:
		bucket = "low"
	case weighted <= 9:
		bucket = "medium"
	default:
		bucket = "high"
	}
	return weighted, bucket
}

type slideFeedbackWire struct {
	OverallScore         int           `json:"overall_score"`
	ContentQuality       dimensionWire `json:"content_quality"`
	Readability          dimensionWire `json:"readability"`
	VisualHierarchy      dimensionWire `json:"visual_hierarchy"`
	AlignmentWithPurpose struct {
		Score          int    `json:"score"`
		Rationale      string `json:"rationale"`
		MeetsObjective bool   `json:"meets_objective"`
	} `json:"alignment_with_purpose"`
	MustFix      []string `json:"must_fix"`
	Improvements []string `json:"improvements"`
}

// ValidateSlide is the strategy-pair policy: the primary LLM path, with
// QuickValidateSlide as the deterministic secondary used when no client is
// configured or the call fails. The returned event is non-nil when the
// secondary ran.
func (s *Service) ValidateSlide(ctx context.Context, slide deck.Slide, so deck.SlideOutline, deckTitle string) (deck.SlideFeedback, *FallbackEvent) {
	if s.llm == nil {
		fb := s.QuickValidateSlide(slide, so)
		return fb, &FallbackEvent{
			Stage:  fmt.Sprintf("slide_validation_%d", so.Number),
			Reason: "no LLM client configured",
			Impact: ImpactNone,
		}
	}
	fb, err := s.llmValidateSlide(ctx, slide, so, deckTitle)
	if err != nil {
		s.log.Warn("LLM slide validation failed; using heuristic scoring",
			"slide", so.Number,
			"error", err.Error(),
		)
		return s.QuickValidateSlide(slide, so), &FallbackEvent{
			Stage:  fmt.Sprintf("slide_validation_%d", so.Number),
			Reason: err.Error(),
			Impact: ImpactMinor,
		}
	}
	return fb, nil
}

func (s *Service) llmValidateSlide(ctx context.Context, slide deck.Slide, so deck.SlideOutline, deckTitle string) (deck.SlideFeedback, error) {
	system, user := promptValidateSlide(slide, so, deckTitle)
	out, err := s.llm.Complete(ctx, anthropic.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: 1024,
	})
	if err != nil {
		return deck.SlideFeedback{}, err
	}
	var wire slideFeedbackWire
	if _, err := jsonx.ExtractObject(out.Text, &wire); err != nil {
		return deck.SlideFeedback{}, fmt.Errorf("slide feedback unparseable: %w", err)
	}

	_, bucket := AssessCognitiveLoad(slide.Content)
	fb := deck.SlideFeedback{
		OverallScore:    clampScore(wire.OverallScore),
		ContentQuality:  coerceDimension(wire.ContentQuality),
		Readability:     coerceDimension(wire.Readability),
		VisualHierarchy: coerceDimension(wire.VisualHierarchy),
		AlignmentWithPurpose: deck.AlignmentScore{
			Score:          clampScore(wire.AlignmentWithPurpose.Score),
			Rationale:      strings.TrimSpace(wire.AlignmentWithPurpose.Rationale),
			MeetsObjective: wire.AlignmentWithPurpose.MeetsObjective,
		},
		CognitiveLoad: bucket,
		MustFix:       trimAll(wire.MustFix),
		Improvements:  trimAll(wire.Improvements),
	}
	if fb.OverallScore == 0 {
		fb.OverallScore = meanScore(
			fb.ContentQuality.Score,
			fb.Readability.Score,
			fb.VisualHierarchy.Score,
			fb.AlignmentWithPurpose.Score,
		)
	}
	return fb, nil
}

// QuickValidateSlide is the deterministic scoring path. Four dimensions
// each start at 100, take their penalties, and floor at 0; the overall
// score is their unweighted mean.
func (s *Service) QuickValidateSlide(slide deck.Slide, so deck.SlideOutline) deck.SlideFeedback {
	content := 100
	readability := 100
	hierarchy := 100
	alignment := 100
	var mustFix []string
	var improvements []string

	empty := slide.Content.IsEmpty()
	if empty {
		content -= PenaltyEmptyContent
		mustFix = append(mustFix, "slide has no content")
	}
	if missing := missingRequiredField(slide); missing != "" {
		content -= PenaltyMissingField
		improvements = append(improvements, missing)
	}

	weighted, bucket := AssessCognitiveLoad(slide.Content)
	if bucket == "high" {
		readability -= PenaltyHighLoad
		improvements = append(improvements, fmt.Sprintf("cognitive load is high (%d weighted items); trim the slide", weighted))
	}

	if len(strings.TrimSpace(slide.Title)) < 3 {
		hierarchy -= PenaltyShortTitle
		improvements = append(improvements, "title is too short to anchor the slide")
	}

	meetsObjective := true
	if slide.Type != so.Type {
		alignment -= PenaltyTypeMismatch
		meetsObjective = false
		mustFix = append(mustFix, fmt.Sprintf("slide type %q does not match outline type %q", slide.Type, so.Type))
	}

	content = floorScore(content)
	readability = floorScore(readability)
	hierarchy = floorScore(hierarchy)
	alignment = floorScore(alignment)

	return deck.SlideFeedback{
		OverallScore:    meanScore(content, readability, hierarchy, alignment),
		ContentQuality:  deck.DimensionScore{Score: content, Rationale: "heuristic content check"},
		Readability:     deck.DimensionScore{Score: readability, Rationale: fmt.Sprintf("weighted item count %d (%s load)", weighted, bucket)},
		VisualHierarchy: deck.DimensionScore{Score: hierarchy, Rationale: "heuristic title/structure check"},
		AlignmentWithPurpose: deck.AlignmentScore{
			Score:          alignment,
			Rationale:      "type match against the outline",
			MeetsObjective: meetsObjective,
		},
		CognitiveLoad: bucket,
		MustFix:       mustFix,
		Improvements:  improvements,
	}
}

// missingRequiredField applies the per-type required-field rules. Empty
// string means the rule is satisfied (or the type has no rule).
func missingRequiredField(slide deck.Slide) string {
	c := slide.Content
	switch slide.Type {
	case deck.SlideProblem:
		if len(c.Sections) == 0 && len(c.Bullets) == 0 {
			return "problem slide needs sections or bullets"
		}
	case deck.SlideSolution:
		if len(c.Sections) == 0 {
			return "solution slide needs sections"
		}
	case deck.SlideBenefits:
		if len(c.Metrics) == 0 && len(c.Bullets) == 0 {
			return "benefits slide needs metrics or bullets"
		}
	case deck.SlideImplementation:
		if c.Diagram == nil && len(c.Sections) == 0 {
			return "implementation slide needs a timeline diagram or sections"
		}
	case deck.SlideConclusion:
		if len(c.Bullets) == 0 {
			return "conclusion slide needs bullets"
		}
	}
	return ""
}

func floorScore(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
