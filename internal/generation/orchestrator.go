package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deckforge/deckforge-backend/internal/deck"
)

// Options tunes one orchestrated run. The zero value is usable: strategy
// defaults by client presence, slides generate sequentially, refinement
// runs when the deck misses the target.
type Options struct {
	FrameworkStrategy FrameworkStrategy
	ParallelSlides    bool
	SkipRefinement    bool
	OnProgress        ProgressObserver
}

// GenerationResult is the full record of one pipeline run.
type GenerationResult struct {
	Presentation    deck.Presentation    `json:"presentation"`
	Outline         deck.Outline         `json:"outline"`
	Framework       FrameworkSelection   `json:"framework"`
	OutlineFeedback deck.OutlineFeedback `json:"outline_feedback"`
	DeckFeedback    deck.DeckFeedback    `json:"deck_feedback"`
	Refinement      *RefinementResult    `json:"refinement,omitempty"`
	Fallbacks       []FallbackEvent      `json:"fallbacks,omitempty"`
	TokensUsed      int                  `json:"tokens_used"`
	DurationMS      int64                `json:"duration_ms"`
}

// GeneratePresentation sequences the whole pipeline: framework selection,
// outline generation and validation (with a single regeneration pass when
// the outline scores below OutlineRegenThreshold), per-slide generation,
// deck validation, and refinement when the deck misses the target score.
func (s *Service) GeneratePresentation(ctx context.Context, req deck.GenerationRequest, opts Options) (GenerationResult, error) {
	start := time.Now()
	var res GenerationResult

	if err := req.Validate(); err != nil {
		return res, err
	}

	// All stage calls in this run flow through the tracker so the result
	// carries a token total even when stages share one client.
	run := s
	var tracker *usageTracker
	if s.llm != nil {
		tracker = &usageTracker{llm: s.llm}
		run = s.WithLLM(tracker)
	}

	opts.OnProgress.emit(ProgressEvent{
		Phase:    PhaseFrameworkSelection,
		Progress: 5,
		Message:  "selecting narrative framework",
	})
	strategy := opts.FrameworkStrategy
	if strategy == "" {
		strategy = StrategyHeuristic
		if run.llm != nil {
			strategy = StrategyLLM
		}
	}
	selection, events := run.SelectFramework(ctx, req, strategy)
	res.Framework = selection
	res.Fallbacks = append(res.Fallbacks, events...)

	opts.OnProgress.emit(ProgressEvent{
		Phase:    PhaseOutline,
		Progress: 15,
		Message:  fmt.Sprintf("drafting outline with the %s framework", selection.Framework.Name),
	})
	outline, fb, err := run.buildOutline(ctx, req, selection.Framework)
	if err != nil {
		return res, fmt.Errorf("outline generation: %w", err)
	}
	if fb != nil {
		res.Fallbacks = append(res.Fallbacks, *fb)
	}

	opts.OnProgress.emit(ProgressEvent{
		Phase:    PhaseOutlineValidation,
		Progress: 25,
		Message:  "reviewing the outline",
	})
	outline, outlineFB, events := run.validateAndMaybeRegenOutline(ctx, outline, req, selection.Framework)
	res.Outline = outline
	res.OutlineFeedback = outlineFB
	res.Fallbacks = append(res.Fallbacks, events...)

	pctx := PresentationContext{
		Title:            outline.Title,
		Subtitle:         outline.Subtitle,
		Audience:         req.Audience,
		Tone:             req.Tone,
		PresentationType: req.PresentationType,
		FrameworkName:    selection.Framework.Name,
	}
	slides, events, err := run.generateSlides(ctx, outline, pctx, opts)
	res.Fallbacks = append(res.Fallbacks, events...)
	if err != nil {
		return res, err
	}

	res.Presentation = deck.Presentation{
		ID:       uuid.NewString(),
		Title:    outline.Title,
		Subtitle: outline.Subtitle,
		Metadata: deck.Metadata{
			Audience:         req.Audience,
			Tone:             req.Tone,
			SlideCount:       len(slides),
			PresentationType: req.PresentationType,
			FrameworkID:      selection.Framework.ID,
		},
		Slides: slides,
	}

	opts.OnProgress.emit(ProgressEvent{
		Phase:    PhaseDeckValidation,
		Progress: 80,
		Message:  "scoring the assembled deck",
	})
	deckFB, fb2 := run.ValidateDeck(ctx, res.Presentation, req)
	if fb2 != nil {
		res.Fallbacks = append(res.Fallbacks, *fb2)
	}
	res.DeckFeedback = deckFB

	if !opts.SkipRefinement && deckFB.OverallScore < run.cfg.TargetQualityScore {
		ref, err := run.RefinePresentation(ctx, res.Presentation, req, opts.OnProgress)
		res.Refinement = &ref
		res.Presentation = ref.Presentation
		res.DeckFeedback = ref.Feedback
		res.Fallbacks = append(res.Fallbacks, ref.Fallbacks...)
		if err != nil {
			return res, err
		}
	}

	if tracker != nil {
		res.TokensUsed = tracker.total()
	}
	res.DurationMS = time.Since(start).Milliseconds()
	opts.OnProgress.emit(ProgressEvent{
		Phase:        PhaseComplete,
		Progress:     100,
		Message:      "presentation ready",
		CurrentScore: res.DeckFeedback.OverallScore,
		TargetScore:  run.cfg.TargetQualityScore,
	})
	s.log.Info("generation finished",
		"presentation_id", res.Presentation.ID,
		"framework", selection.Framework.ID,
		"slides", len(res.Presentation.Slides),
		"deck_score", res.DeckFeedback.OverallScore,
		"tokens_used", res.TokensUsed,
		"duration_ms", res.DurationMS,
	)
	return res, nil
}

// buildOutline prefers the LLM path and falls back to a deterministic
// framework-sequence outline only when no client is configured. LLM
// failures with a client present are hard errors: an invented outline
// would silently misrepresent the brief.
func (s *Service) buildOutline(ctx context.Context, req deck.GenerationRequest, fw deck.Framework) (deck.Outline, *FallbackEvent, error) {
	if s.llm == nil {
		return templateOutline(req, fw), &FallbackEvent{
			Stage:  "outline",
			Reason: "no LLM client configured",
			Impact: ImpactModerate,
		}, nil
	}
	outline, ex, err := s.GenerateOutline(ctx, req, fw)
	if err != nil {
		return deck.Outline{}, nil, err
	}
	if !ex.Clean() {
		return outline, &FallbackEvent{
			Stage:  "outline",
			Reason: "outline JSON required recovery from surrounding text",
			Impact: ImpactMinor,
		}, nil
	}
	return outline, nil, nil
}

// validateAndMaybeRegenOutline applies the single-regeneration policy: an
// outline scoring below OutlineRegenThreshold gets one more attempt, and
// the better-scoring of the two survives. Ties keep the original.
func (s *Service) validateAndMaybeRegenOutline(ctx context.Context, outline deck.Outline, req deck.GenerationRequest, fw deck.Framework) (deck.Outline, deck.OutlineFeedback, []FallbackEvent) {
	var events []FallbackEvent

	fb := s.scoreOutline(ctx, outline, req, fw, &events)
	if fb.OverallScore >= OutlineRegenThreshold || s.llm == nil {
		return outline, fb, events
	}

	s.log.Info("outline below regeneration threshold",
		"score", fb.OverallScore,
		"threshold", OutlineRegenThreshold,
	)
	candidate, _, err := s.GenerateOutline(ctx, req, fw)
	if err != nil {
		events = append(events, FallbackEvent{
			Stage:  "outline_regeneration",
			Reason: err.Error(),
			Impact: ImpactMinor,
		})
		return outline, fb, events
	}
	candFB := s.scoreOutline(ctx, candidate, req, fw, &events)
	if candFB.OverallScore > fb.OverallScore {
		return candidate, candFB, events
	}
	return outline, fb, events
}

func (s *Service) scoreOutline(ctx context.Context, outline deck.Outline, req deck.GenerationRequest, fw deck.Framework, events *[]FallbackEvent) deck.OutlineFeedback {
	fb, err := s.ValidateOutline(ctx, outline, req, fw)
	if err != nil {
		impact := ImpactMinor
		if s.llm == nil {
			impact = ImpactNone
		}
		*events = append(*events, FallbackEvent{
			Stage:  "outline_validation",
			Reason: err.Error(),
			Impact: impact,
		})
		return s.QuickValidateOutline(outline, req, fw)
	}
	return fb
}

// generateSlides expands every outline entry, sequentially by default or
// concurrently under an errgroup. Order is preserved either way, and one
// slide's template fallback never blocks its neighbors; only auth errors
// and cancellation abort the batch.
func (s *Service) generateSlides(ctx context.Context, outline deck.Outline, pctx PresentationContext, opts Options) ([]deck.Slide, []FallbackEvent, error) {
	total := len(outline.Slides)
	slides := make([]deck.Slide, total)

	if !opts.ParallelSlides {
		var events []FallbackEvent
		for i, so := range outline.Slides {
			opts.OnProgress.emit(slideProgress(i, total, so.Title))
			slide, evs, err := s.generateValidatedSlide(ctx, so, pctx)
			events = append(events, evs...)
			if err != nil {
				return nil, events, fmt.Errorf("slide %d: %w", so.Number, err)
			}
			slides[i] = slide
		}
		return slides, events, nil
	}

	var (
		mu     sync.Mutex
		events []FallbackEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, so := range outline.Slides {
		g.Go(func() error {
			opts.OnProgress.emit(slideProgress(i, total, so.Title))
			slide, evs, err := s.generateValidatedSlide(gctx, so, pctx)
			mu.Lock()
			events = append(events, evs...)
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("slide %d: %w", so.Number, err)
			}
			slides[i] = slide
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, events, err
	}
	return slides, events, nil
}

// generateValidatedSlide runs the generate-then-validate pair for one
// outline entry. A slide that fails the per-slide gate gets exactly one
// feedback-injected regeneration, and the better-scoring of the two is
// kept; ties keep the first.
func (s *Service) generateValidatedSlide(ctx context.Context, so deck.SlideOutline, pctx PresentationContext) (deck.Slide, []FallbackEvent, error) {
	slide, events, err := s.GenerateSlide(ctx, so, pctx)
	if err != nil {
		return deck.Slide{}, events, err
	}
	fb, fev := s.ValidateSlide(ctx, slide, so, pctx.Title)
	if fev != nil {
		events = append(events, *fev)
	}
	if fb.Passes(s.cfg.MinSlideScore) || s.llm == nil {
		return slide, events, nil
	}

	s.log.Info("slide below quality gate, regenerating once",
		"slide", so.Number,
		"score", fb.OverallScore,
		"min_score", s.cfg.MinSlideScore,
	)
	retryCtx := pctx
	retryCtx.Feedback = slideRetryFeedback(fb)
	cand, evs, err := s.GenerateSlide(ctx, so, retryCtx)
	events = append(events, evs...)
	if err != nil {
		return deck.Slide{}, events, err
	}
	candFB, fev2 := s.ValidateSlide(ctx, cand, so, pctx.Title)
	if fev2 != nil {
		events = append(events, *fev2)
	}
	if candFB.OverallScore > fb.OverallScore {
		return cand, events, nil
	}
	return slide, events, nil
}

func slideRetryFeedback(fb deck.SlideFeedback) string {
	parts := append(append([]string(nil), fb.MustFix...), fb.Improvements...)
	if len(parts) == 0 {
		return fmt.Sprintf("The previous attempt scored %d/100; rework it for clarity and impact.", fb.OverallScore)
	}
	return strings.Join(parts, "; ")
}

func slideProgress(i, total int, title string) ProgressEvent {
	pct := 30
	if total > 0 {
		pct = 30 + (45*i)/total
	}
	return ProgressEvent{
		Phase:    PhaseSlides,
		Progress: pct,
		Message:  fmt.Sprintf("generating slide %d of %d: %s", i+1, total, title),
	}
}

// templateOutline builds a deterministic outline straight from the
// framework sequence for runs with no client configured.
func templateOutline(req deck.GenerationRequest, fw deck.Framework) deck.Outline {
	seq := fw.SlideSequenceFor(req.SlideCount)
	out := deck.Outline{
		Title:       clampText(req.Prompt, 80),
		FrameworkID: fw.ID,
		Slides:      make([]deck.SlideOutline, len(seq)),
	}
	for i, t := range seq {
		out.Slides[i] = deck.SlideOutline{
			Number:          i + 1,
			Type:            t,
			Title:           titleForType(t, req),
			Purpose:         fmt.Sprintf("cover the %s beat of the narrative", t),
			EstimatedTokens: 400,
		}
		out.TotalEstimatedTokens += 400
	}
	return out
}

func titleForType(t deck.SlideType, req deck.GenerationRequest) string {
	if t == deck.SlideTitle {
		return clampText(req.Prompt, 80)
	}
	name := string(t)
	return strings.ToUpper(name[:1]) + name[1:]
}
