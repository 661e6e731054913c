package generation

import (
	"context"
	"fmt"
	"testing"

	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

func deckReviewJSON(overall int, slideScores []int) string {
	scores := ""
	for i, s := range slideScores {
		if i > 0 {
			scores += ", "
		}
		scores += fmt.Sprint(s)
	}
	return fmt.Sprintf(`{"overall_score": %d,
		"consistency": {"score": %d}, "narrative_arc": {"score": %d},
		"audience_fit": {"score": %d}, "coverage": {"score": %d},
		"slide_scores": [%s],
		"improvements": ["sharpen the middle of the deck"]}`,
		overall, overall, overall, overall, overall, scores)
}

const refinedSlideJSON = `{"title": "Meter what customers value", "layout": "bullets",
	"content": {"layout": "bullets", "bullets": ["Meter API calls", "Bill monthly in arrears", "Grandfather current contracts"]}}`

func TestRefinePresentationTargetAlreadyMet(t *testing.T) {
	svc := newTestService(t, nil)
	p := cleanDeck(t, 5)

	res, err := svc.RefinePresentation(context.Background(), p, businessRequest(5), nil)
	if err != nil {
		t.Fatalf("RefinePresentation: %v", err)
	}
	if !res.TargetAchieved {
		t.Fatal("clean deck should satisfy the target immediately")
	}
	if res.TotalRounds != 0 || len(res.Rounds) != 0 {
		t.Fatalf("rounds = %d, want 0", res.TotalRounds)
	}
	if res.FinalScore != res.InitialScore {
		t.Fatalf("final %d != initial %d with no rounds run", res.FinalScore, res.InitialScore)
	}
	if res.State != StateTargetAchieved {
		t.Fatalf("state = %q, want %q", res.State, StateTargetAchieved)
	}
	if res.SessionID == "" {
		t.Fatal("missing session id")
	}
}

func TestRefinePresentationRollbackThenImprove(t *testing.T) {
	// Deck reviews are scripted by call order: the initial pass scores 70,
	// the round-1 candidate regresses to 65 (rolled back), round 2 scrapes
	// in at exactly the minimum improvement, round 3 clears the target.
	deckScores := []int{70, 65, 72, 85}
	reviews := 0
	llm := &fakeLLM{respond: func(req anthropic.CompletionRequest) (string, error) {
		switch {
		case isDeckReviewPrompt(req):
			overall := deckScores[reviews]
			reviews++
			return deckReviewJSON(overall, []int{90, 60, 90, 90, 90}), nil
		case isSlidePrompt(req):
			return refinedSlideJSON, nil
		default:
			return "", fmt.Errorf("unexpected prompt: %q", req.System)
		}
	}}
	svc := newTestService(t, llm)
	p := cleanDeck(t, 5)

	res, err := svc.RefinePresentation(context.Background(), p, businessRequest(5), nil)
	if err != nil {
		t.Fatalf("RefinePresentation: %v", err)
	}
	if res.InitialScore != 70 || res.FinalScore != 85 {
		t.Fatalf("scores = %d -> %d, want 70 -> 85", res.InitialScore, res.FinalScore)
	}
	if res.TotalImprovement != 15 {
		t.Fatalf("improvement = %d, want 15", res.TotalImprovement)
	}
	if res.TotalRounds != 3 || len(res.Rounds) != 3 {
		t.Fatalf("rounds = %d, want 3", res.TotalRounds)
	}
	if res.Rounds[0].Accepted {
		t.Fatal("round 1 regressed and must be rolled back")
	}
	if !res.Rounds[1].Accepted || !res.Rounds[2].Accepted {
		t.Fatalf("rounds 2 and 3 improved and must be accepted: %+v", res.Rounds)
	}
	if res.Rounds[0].ScoreBefore != 70 || res.Rounds[0].ScoreAfter != 65 {
		t.Fatalf("round 1 = %+v", res.Rounds[0])
	}
	if got := res.Rounds[0].TargetSlides; len(got) != 1 || got[0] != 2 {
		t.Fatalf("round 1 targets = %v, want [2]", got)
	}
	if !res.TargetAchieved {
		t.Fatal("85 clears the default target of 80")
	}
	if res.State != StateTargetAchieved {
		t.Fatalf("state = %q, want %q", res.State, StateTargetAchieved)
	}

	// The accepted score never drops below the best seen.
	best := res.InitialScore
	for _, r := range res.Rounds {
		if r.Accepted {
			if r.ScoreAfter < best {
				t.Fatalf("accepted round lowered the score: %+v", r)
			}
			best = r.ScoreAfter
		}
	}
	if res.FinalScore < res.InitialScore {
		t.Fatal("final score dropped below the initial score")
	}
}

func TestRefinePresentationNoTargetsBelowThreshold(t *testing.T) {
	// Overall misses the target but every slide individually clears it:
	// nothing to regenerate, so the engine stops without burning rounds.
	llm := &fakeLLM{respond: func(req anthropic.CompletionRequest) (string, error) {
		if !isDeckReviewPrompt(req) {
			return "", fmt.Errorf("unexpected prompt: %q", req.System)
		}
		return deckReviewJSON(75, []int{90, 90, 90, 90, 90}), nil
	}}
	svc := newTestService(t, llm)

	res, err := svc.RefinePresentation(context.Background(), cleanDeck(t, 5), businessRequest(5), nil)
	if err != nil {
		t.Fatalf("RefinePresentation: %v", err)
	}
	if res.TotalRounds != 0 {
		t.Fatalf("rounds = %d, want 0", res.TotalRounds)
	}
	if res.State != StateExhausted {
		t.Fatalf("state = %q, want %q", res.State, StateExhausted)
	}
	if llm.callCount() != 1 {
		t.Fatalf("llm calls = %d, want just the initial review", llm.callCount())
	}
}

func TestRefinePresentationCancellation(t *testing.T) {
	llm := &fakeLLM{respond: func(req anthropic.CompletionRequest) (string, error) {
		if isDeckReviewPrompt(req) {
			return deckReviewJSON(70, []int{60, 60, 60, 60, 60}), nil
		}
		return refinedSlideJSON, nil
	}}
	svc := newTestService(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := svc.RefinePresentation(ctx, cleanDeck(t, 5), businessRequest(5), func(ev ProgressEvent) {
		if ev.Phase == PhaseRefinement && ev.Round == 1 {
			cancel()
		}
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// No round completed, so the best state is the initial one.
	if res.TotalRounds != 0 {
		t.Fatalf("rounds = %d, want 0", res.TotalRounds)
	}
	if res.FinalScore != res.InitialScore {
		t.Fatalf("final %d != initial %d after cancellation", res.FinalScore, res.InitialScore)
	}
	if len(res.Presentation.Slides) != 5 {
		t.Fatal("cancellation must still return the best presentation")
	}
}
