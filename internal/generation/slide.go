package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/pkg/jsonx"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

// PresentationContext is the deck-level context injected into every
// per-slide prompt. Feedback is populated by the refinement engine.
type PresentationContext struct {
	Title            string
	Subtitle         string
	Audience         string
	Tone             deck.Tone
	PresentationType deck.PresentationType
	FrameworkName    string
	Feedback         string
}

var layoutBySlideType = map[deck.SlideType]deck.SlideLayout{
	deck.SlideTitle:          deck.LayoutSections,
	deck.SlideProblem:        deck.LayoutBullets,
	deck.SlideSolution:       deck.LayoutSections,
	deck.SlideBenefits:       deck.LayoutMetrics,
	deck.SlideImplementation: deck.LayoutDiagram,
	deck.SlideConclusion:     deck.LayoutBullets,
	deck.SlideSituation:      deck.LayoutSections,
	deck.SlideComplication:   deck.LayoutBullets,
	deck.SlideQuestion:       deck.LayoutSections,
	deck.SlideAnswer:         deck.LayoutSections,
	deck.SlideAgitation:      deck.LayoutBullets,
	deck.SlideTask:           deck.LayoutBullets,
	deck.SlideAction:         deck.LayoutDiagram,
	deck.SlideResult:         deck.LayoutMetrics,
	deck.SlideBefore:         deck.LayoutSections,
	deck.SlideAfter:          deck.LayoutSections,
	deck.SlideBridge:         deck.LayoutSections,
	deck.SlideWhat:           deck.LayoutSections,
	deck.SlideWhy:            deck.LayoutBullets,
	deck.SlideHow:            deck.LayoutDiagram,
}

// LayoutForSlideType maps a narrative slide type to its default layout.
func LayoutForSlideType(t deck.SlideType) deck.SlideLayout {
	if l, ok := layoutBySlideType[t]; ok {
		return l
	}
	return deck.LayoutBullets
}

type slideWire struct {
	Title   string            `json:"title"`
	Layout  deck.SlideLayout  `json:"layout"`
	Content deck.SlideContent `json:"content"`
}

// GenerateSlide expands one outline entry into full slide content. Parse
// failures retry up to MaxSlideRetries, then a deterministic template
// fallback fills the slot; only auth failures and cancellation propagate
// as errors so a bad slide never takes down the rest of the deck.
func (s *Service) GenerateSlide(ctx context.Context, so deck.SlideOutline, pctx PresentationContext) (deck.Slide, []FallbackEvent, error) {
	layout := LayoutForSlideType(so.Type)

	if s.llm == nil {
		slide, impact := templateSlide(so)
		return slide, []FallbackEvent{{
			Stage:  fmt.Sprintf("slide_%d", so.Number),
			Reason: "no LLM client configured",
			Impact: impact,
		}}, nil
	}

	var events []FallbackEvent
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxSlideRetries; attempt++ {
		if ctx.Err() != nil {
			return deck.Slide{}, events, ctx.Err()
		}

		slide, ex, err := s.generateSlideOnce(ctx, so, pctx, layout)
		if err == nil {
			if !ex.Clean() {
				// Recovered via fence stripping or brace matching: the
				// content is intact, so this is a minor event, not an error.
				events = append(events, FallbackEvent{
					Stage:  fmt.Sprintf("slide_%d", so.Number),
					Reason: "model response wrapped JSON; extracted",
					Impact: ImpactMinor,
				})
			}
			return slide, events, nil
		}
		if errors.Is(err, anthropic.ErrAuth) || errors.Is(err, context.Canceled) {
			return deck.Slide{}, events, err
		}
		lastErr = err
		s.log.Warn("Slide generation attempt failed",
			"slide", so.Number,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}

	slide, impact := templateSlide(so)
	reason := "retries exhausted"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	events = append(events, FallbackEvent{
		Stage:  fmt.Sprintf("slide_%d", so.Number),
		Reason: reason,
		Impact: impact,
	})
	return slide, events, nil
}

func (s *Service) generateSlideOnce(ctx context.Context, so deck.SlideOutline, pctx PresentationContext, layout deck.SlideLayout) (deck.Slide, jsonx.Extraction, error) {
	system, user := promptGenerateSlide(so, pctx, layout)
	maxTokens := so.EstimatedTokens * 2
	if maxTokens < 512 {
		maxTokens = 512
	}
	out, err := s.llm.Complete(ctx, anthropic.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return deck.Slide{}, jsonx.Extraction{}, err
	}

	var wire slideWire
	ex, err := jsonx.ExtractObject(out.Text, &wire)
	if err != nil {
		return deck.Slide{}, ex, fmt.Errorf("slide response unparseable: %w", err)
	}
	if wire.Content.Layout == "" {
		wire.Content.Layout = layout
	}
	content, err := deck.NewSlideContent(wire.Content)
	if err != nil {
		return deck.Slide{}, ex, fmt.Errorf("slide content invalid: %w", err)
	}

	title := strings.TrimSpace(wire.Title)
	if title == "" {
		title = so.Title
	}
	return deck.Slide{
		ID:      uuid.NewString(),
		Type:    so.Type,
		Title:   title,
		Layout:  content.Layout,
		Content: content,
	}, ex, nil
}

// templateSlide builds a context-free slide from the outline entry alone.
// Impact is moderate when the outline purpose gives us something to say,
// significant when only placeholder content is available.
func templateSlide(so deck.SlideOutline) (deck.Slide, Impact) {
	impact := ImpactModerate
	purpose := strings.TrimSpace(so.Purpose)
	title := strings.TrimSpace(so.Title)

	bullets := make([]string, 0, 3)
	if purpose != "" {
		bullets = append(bullets, purpose)
	}
	if title != "" {
		bullets = append(bullets, "Key points on "+title)
	}
	if len(bullets) == 0 {
		bullets = append(bullets, "Content to be added")
		impact = ImpactSignificant
	}

	content, _ := deck.NewSlideContent(deck.SlideContent{
		Layout:  deck.LayoutBullets,
		Bullets: bullets,
	})
	if title == "" {
		title = fmt.Sprintf("Slide %d", so.Number)
	}
	return deck.Slide{
		ID:      uuid.NewString(),
		Type:    so.Type,
		Title:   title,
		Layout:  deck.LayoutBullets,
		Content: content,
	}, impact
}

func slideJSON(s deck.Slide) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
