package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge-backend/internal/deck"
)

// RefinementState is the engine's coarse lifecycle. It is reported, not
// branched on: the algorithm below is a plain loop.
type RefinementState string

const (
	StateIdle           RefinementState = "idle"
	StateAnalyzing      RefinementState = "analyzing"
	StateRefining       RefinementState = "refining"
	StateImproved       RefinementState = "improved"
	StateExhausted      RefinementState = "exhausted"
	StateTargetAchieved RefinementState = "target_achieved"
	StateDone           RefinementState = "done"
)

// RoundLog records one completed refinement round.
type RoundLog struct {
	Round        int   `json:"round"`
	ScoreBefore  int   `json:"score_before"`
	ScoreAfter   int   `json:"score_after"`
	TargetSlides []int `json:"target_slides"` // 1-based slide numbers
	Accepted     bool  `json:"accepted"`
}

// RefinementResult is the engine's summary. Presentation is always the
// best-scoring state seen, never a rejected candidate.
type RefinementResult struct {
	SessionID        string            `json:"session_id"`
	InitialScore     int               `json:"initial_score"`
	FinalScore       int               `json:"final_score"`
	TotalImprovement int               `json:"total_improvement"`
	TotalRounds      int               `json:"total_rounds"`
	TargetAchieved   bool              `json:"target_achieved"`
	State            RefinementState   `json:"state"`
	Rounds           []RoundLog        `json:"rounds,omitempty"`
	Presentation     deck.Presentation `json:"presentation"`
	Feedback         deck.DeckFeedback `json:"feedback"`
	Fallbacks        []FallbackEvent   `json:"fallbacks,omitempty"`
}

// RefinePresentation runs bounded rounds of validate, target the weakest
// slides, regenerate with feedback, and re-validate. A candidate replaces
// the accepted state only when its score strictly improves; otherwise the
// round rolls back. The returned score therefore never decreases below
// the initial one.
//
// Cancellation returns the best state from completed rounds alongside the
// context error.
func (s *Service) RefinePresentation(ctx context.Context, p deck.Presentation, req deck.GenerationRequest, onProgress ProgressObserver) (RefinementResult, error) {
	res := RefinementResult{
		SessionID: uuid.NewString(),
		State:     StateAnalyzing,
	}

	best := p.Clone()
	bestFB, fb := s.ValidateDeck(ctx, best, req)
	if fb != nil {
		res.Fallbacks = append(res.Fallbacks, *fb)
	}
	bestScore := bestFB.OverallScore
	res.InitialScore = bestScore

	pctx := s.refinementContext(best, req)

	for round := 1; round <= s.cfg.MaxRefinementRounds; round++ {
		if err := ctx.Err(); err != nil {
			return s.finishRefinement(res, best, bestFB, bestScore), err
		}
		if bestScore >= s.cfg.TargetQualityScore {
			res.TargetAchieved = true
			break
		}

		targets := weakestSlides(bestFB.SlideScores, s.cfg.MaxRefinementTargets, s.cfg.TargetQualityScore)
		if len(targets) == 0 {
			break
		}

		res.State = StateRefining
		onProgress.emit(ProgressEvent{
			Phase:        PhaseRefinement,
			Progress:     90,
			Message:      fmt.Sprintf("refinement round %d: reworking %d slide(s)", round, len(targets)),
			Round:        round,
			TotalRounds:  s.cfg.MaxRefinementRounds,
			CurrentScore: bestScore,
			TargetScore:  s.cfg.TargetQualityScore,
		})

		candidate := best.Clone()
		for _, idx := range targets {
			if err := ctx.Err(); err != nil {
				return s.finishRefinement(res, best, bestFB, bestScore), err
			}
			slideCtx := pctx
			slideCtx.Feedback = refinementFeedback(bestFB, idx)
			so := outlineEntryForSlide(candidate.Slides[idx], idx)
			slide, events, err := s.GenerateSlide(ctx, so, slideCtx)
			res.Fallbacks = append(res.Fallbacks, events...)
			if err != nil {
				return s.finishRefinement(res, best, bestFB, bestScore), err
			}
			candidate.Slides[idx] = slide
		}

		candFB, fb := s.ValidateDeck(ctx, candidate, req)
		if fb != nil {
			res.Fallbacks = append(res.Fallbacks, *fb)
		}
		candScore := candFB.OverallScore

		log := RoundLog{
			Round:        round,
			ScoreBefore:  bestScore,
			ScoreAfter:   candScore,
			TargetSlides: toSlideNumbers(targets),
		}
		improvement := candScore - bestScore
		if improvement >= s.cfg.MinimumImprovement || candScore > bestScore {
			best = candidate
			bestFB = candFB
			bestScore = candScore
			log.Accepted = true
		} else {
			s.log.Info("refinement round rolled back",
				"round", round,
				"best_score", bestScore,
				"candidate_score", candScore,
			)
		}
		res.Rounds = append(res.Rounds, log)
		res.TotalRounds = round
	}

	switch {
	case bestScore >= s.cfg.TargetQualityScore:
		res.TargetAchieved = true
		res.State = StateTargetAchieved
	case bestScore > res.InitialScore:
		res.State = StateImproved
	default:
		res.State = StateExhausted
	}
	return s.finishRefinement(res, best, bestFB, bestScore), nil
}

func (s *Service) finishRefinement(res RefinementResult, best deck.Presentation, fb deck.DeckFeedback, score int) RefinementResult {
	res.Presentation = best
	res.Feedback = fb
	res.FinalScore = score
	res.TotalImprovement = score - res.InitialScore
	if res.State == StateAnalyzing || res.State == StateRefining {
		res.State = StateDone
	}
	s.log.Info("refinement finished",
		"session_id", res.SessionID,
		"initial_score", res.InitialScore,
		"final_score", res.FinalScore,
		"rounds", res.TotalRounds,
		"target_achieved", res.TargetAchieved,
	)
	return res
}

// weakestSlides returns the indexes of the lowest-scoring slides below the
// target, capped at max, ordered worst first.
func weakestSlides(scores []int, max, target int) []int {
	type scored struct{ idx, score int }
	var below []scored
	for i, v := range scores {
		if v < target {
			below = append(below, scored{i, v})
		}
	}
	sort.SliceStable(below, func(a, b int) bool { return below[a].score < below[b].score })
	if len(below) > max {
		below = below[:max]
	}
	out := make([]int, len(below))
	for i, s := range below {
		out[i] = s.idx
	}
	return out
}

func toSlideNumbers(indexes []int) []int {
	out := make([]int, len(indexes))
	for i, idx := range indexes {
		out[i] = idx + 1
	}
	return out
}

// refinementFeedback folds the deck-level findings and the slide's score
// into a prompt-ready paragraph.
func refinementFeedback(fb deck.DeckFeedback, idx int) string {
	var b strings.Builder
	if idx < len(fb.SlideScores) {
		fmt.Fprintf(&b, "This slide scored %d/100 in the last review.", fb.SlideScores[idx])
	}
	if len(fb.MustFix) > 0 {
		b.WriteString(" Must fix: ")
		b.WriteString(strings.Join(fb.MustFix, "; "))
		b.WriteString(".")
	}
	if len(fb.Improvements) > 0 {
		b.WriteString(" Suggested improvements: ")
		b.WriteString(strings.Join(fb.Improvements, "; "))
		b.WriteString(".")
	}
	if b.Len() == 0 {
		return "Rework this slide for clarity and impact."
	}
	return strings.TrimSpace(b.String())
}

// refinementContext rebuilds the per-slide prompt context from the deck's
// own metadata so refinement does not depend on the original run state.
func (s *Service) refinementContext(p deck.Presentation, req deck.GenerationRequest) PresentationContext {
	fwName := p.Metadata.FrameworkID
	if fw, ok := deck.FrameworkByID(p.Metadata.FrameworkID); ok {
		fwName = fw.Name
	}
	return PresentationContext{
		Title:            p.Title,
		Subtitle:         p.Subtitle,
		Audience:         req.Audience,
		Tone:             req.Tone,
		PresentationType: req.PresentationType,
		FrameworkName:    fwName,
	}
}

func outlineEntryForSlide(sl deck.Slide, idx int) deck.SlideOutline {
	return deck.SlideOutline{
		Number:          idx + 1,
		Type:            sl.Type,
		Title:           sl.Title,
		Purpose:         fmt.Sprintf("rework the %s slide with the reviewer feedback applied", sl.Type),
		EstimatedTokens: 400,
	}
}
