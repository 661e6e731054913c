package generation

import (
	"context"
	"testing"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

func cleanDeck(t *testing.T, slideCount int) deck.Presentation {
	t.Helper()
	types := []deck.SlideType{deck.SlideTitle, deck.SlideProblem, deck.SlideSolution, deck.SlideBenefits, deck.SlideConclusion}
	if slideCount > len(types) {
		t.Fatalf("cleanDeck supports up to %d slides", len(types))
	}
	titles := []string{"Usage-based pricing", "Churn is accelerating", "Meter what customers value", "What we gain", "The ask"}

	slides := make([]deck.Slide, slideCount)
	for i := 0; i < slideCount; i++ {
		var content deck.SlideContent
		var err error
		switch types[i] {
		case deck.SlideSolution, deck.SlideTitle:
			content, err = deck.NewSlideContent(deck.SlideContent{
				Layout:   deck.LayoutSections,
				Sections: []deck.Section{{Heading: "Point", Body: "One concrete paragraph."}},
			})
		case deck.SlideBenefits:
			content, err = deck.NewSlideContent(deck.SlideContent{
				Layout:  deck.LayoutMetrics,
				Metrics: []deck.Metric{{Label: "NRR", Value: "118%"}},
			})
		default:
			content, err = deck.NewSlideContent(deck.SlideContent{
				Layout:  deck.LayoutBullets,
				Bullets: []string{"First point", "Second point"},
			})
		}
		if err != nil {
			t.Fatalf("NewSlideContent: %v", err)
		}
		slides[i] = deck.Slide{
			ID:      titles[i],
			Type:    types[i],
			Title:   titles[i],
			Layout:  content.Layout,
			Content: content,
		}
	}
	return deck.Presentation{
		ID:     "p1",
		Title:  "Usage-based pricing",
		Slides: slides,
		Metadata: deck.Metadata{
			SlideCount:       slideCount,
			PresentationType: deck.TypeBusiness,
			FrameworkID:      "problem-solution",
		},
	}
}

func TestQuickValidateDeckCleanDeck(t *testing.T) {
	svc := newTestService(t, nil)
	p := cleanDeck(t, 5)
	fb := svc.QuickValidateDeck(p, businessRequest(5))

	if fb.OverallScore != 100 {
		t.Fatalf("overall = %d, want 100", fb.OverallScore)
	}
	if len(fb.SlideScores) != 5 {
		t.Fatalf("slide_scores len = %d, want 5", len(fb.SlideScores))
	}
	for i, s := range fb.SlideScores {
		if s != 100 {
			t.Fatalf("slide %d score = %d, want 100", i+1, s)
		}
	}
	if len(fb.MustFix) != 0 {
		t.Fatalf("unexpected must_fix: %v", fb.MustFix)
	}
}

func TestQuickValidateDeckDuplicateTitles(t *testing.T) {
	svc := newTestService(t, nil)
	p := cleanDeck(t, 5)
	p.Slides[3].Title = p.Slides[1].Title

	fb := svc.QuickValidateDeck(p, businessRequest(5))
	if want := 100 - PenaltyDuplicateTitle; fb.Consistency.Score != want {
		t.Fatalf("consistency = %d, want %d", fb.Consistency.Score, want)
	}
}

func TestQuickValidateDeckCountDrift(t *testing.T) {
	svc := newTestService(t, nil)
	p := cleanDeck(t, 4) // request asks for 5

	fb := svc.QuickValidateDeck(p, businessRequest(5))
	if want := 100 - PenaltyCountDrift; fb.Coverage.Score != want {
		t.Fatalf("coverage = %d, want %d", fb.Coverage.Score, want)
	}
	if len(fb.MustFix) == 0 {
		t.Fatal("count drift should be a must-fix")
	}
	// A 4-slide problem-solution run ends on benefits, not a closer.
	if fb.NarrativeArc.Score != 100-PenaltyMissingClose {
		t.Fatalf("narrative = %d, want %d", fb.NarrativeArc.Score, 100-PenaltyMissingClose)
	}
}

func TestQuickValidateDeckEmptyDeck(t *testing.T) {
	svc := newTestService(t, nil)
	fb := svc.QuickValidateDeck(deck.Presentation{ID: "p1", Title: "Empty"}, businessRequest(5))
	if fb.NarrativeArc.Score != 0 {
		t.Fatalf("narrative = %d, want 0", fb.NarrativeArc.Score)
	}
	if len(fb.MustFix) == 0 {
		t.Fatal("empty deck must carry must_fix entries")
	}
}

func TestValidateDeckNormalizesSlideScoreLength(t *testing.T) {
	// The model returns a slide_scores array of the wrong length; the
	// validator must substitute heuristic per-slide scores so refinement
	// targeting can index safely.
	llm := &fakeLLM{respond: func(req anthropic.CompletionRequest) (string, error) {
		return `{"overall_score": 75,
			"consistency": {"score": 80}, "narrative_arc": {"score": 70},
			"audience_fit": {"score": 75}, "coverage": {"score": 75},
			"slide_scores": [90, 90]}`, nil
	}}
	svc := newTestService(t, llm)
	p := cleanDeck(t, 5)

	fb, fallback := svc.ValidateDeck(context.Background(), p, businessRequest(5))
	if fallback != nil {
		t.Fatalf("unexpected fallback: %+v", fallback)
	}
	if len(fb.SlideScores) != 5 {
		t.Fatalf("slide_scores len = %d, want 5", len(fb.SlideScores))
	}
	if fb.OverallScore != 75 {
		t.Fatalf("overall = %d, want 75", fb.OverallScore)
	}
}

func TestValidateDeckCarriesPerSlideFeedback(t *testing.T) {
	svc := newTestService(t, nil)
	p := cleanDeck(t, 5)

	fb := svc.QuickValidateDeck(p, businessRequest(5))
	if len(fb.SlideFeedback) != len(p.Slides) {
		t.Fatalf("slide_feedback len = %d, want %d", len(fb.SlideFeedback), len(p.Slides))
	}
	for i, sf := range fb.SlideFeedback {
		if sf.OverallScore != fb.SlideScores[i] {
			t.Fatalf("slide %d: feedback overall %d desynced from score %d", i, sf.OverallScore, fb.SlideScores[i])
		}
		if sf.CognitiveLoad == "" {
			t.Fatalf("slide %d: cognitive load bucket missing", i)
		}
	}

	llm := &fakeLLM{respond: func(req anthropic.CompletionRequest) (string, error) {
		return `{"overall_score": 80,
			"consistency": {"score": 80}, "narrative_arc": {"score": 80},
			"audience_fit": {"score": 80}, "coverage": {"score": 80},
			"slide_scores": [80, 80, 80, 80, 80]}`, nil
	}}
	fb, fallback := newTestService(t, llm).ValidateDeck(context.Background(), p, businessRequest(5))
	if fallback != nil {
		t.Fatalf("unexpected fallback: %+v", fallback)
	}
	if len(fb.SlideFeedback) != len(p.Slides) {
		t.Fatalf("llm path slide_feedback len = %d, want %d", len(fb.SlideFeedback), len(p.Slides))
	}
}
