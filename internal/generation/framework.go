package generation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
)

// FrameworkStrategy is an explicit input: callers decide whether framework
// selection consults the model or stays on the deterministic rule table.
type FrameworkStrategy string

const (
	StrategyHeuristic FrameworkStrategy = "heuristic"
	StrategyLLM       FrameworkStrategy = "llm"
)

type FrameworkSelection struct {
	Framework    deck.Framework `json:"framework"`
	Confidence   int            `json:"confidence"`
	Rationale    string         `json:"rationale"`
	Alternatives []string       `json:"alternatives,omitempty"`
}

// SelectFramework picks the narrative framework for the brief. The LLM
// strategy falls back silently to the rule table on any client failure,
// recording a minor-impact fallback event.
func (s *Service) SelectFramework(ctx context.Context, req deck.GenerationRequest, strategy FrameworkStrategy) (FrameworkSelection, []FallbackEvent) {
	if strategy == StrategyLLM && s.llm != nil {
		sel, err := s.llmSelectFramework(ctx, req)
		if err == nil {
			return sel, nil
		}
		s.log.Warn("LLM framework selection failed; using rule table",
			"error", err.Error(),
		)
		return s.heuristicSelectFramework(req), []FallbackEvent{{
			Stage:  "framework_selection",
			Reason: err.Error(),
			Impact: ImpactMinor,
		}}
	}
	return s.heuristicSelectFramework(req), nil
}

var heuristicFrameworkByType = map[deck.PresentationType]string{
	deck.TypeBusiness:       "problem-solution",
	deck.TypeTechnical:      "what-why-how",
	deck.TypeProcess:        "star",
	deck.TypeTransformation: "before-after-bridge",
	deck.TypePOV:            "scqa",
}

var heuristicKeywords = []struct {
	keyword     string
	frameworkID string
}{
	{"problem", "problem-solution"},
	{"pain point", "problem-solution"},
	{"case study", "star"},
	{"story", "star"},
	{"transform", "before-after-bridge"},
	{"migration", "before-after-bridge"},
	{"change", "before-after-bridge"},
	{"introduc", "what-why-how"},
	{"overview", "what-why-how"},
}

func (s *Service) heuristicSelectFramework(req deck.GenerationRequest) FrameworkSelection {
	if id, ok := heuristicFrameworkByType[req.PresentationType]; ok {
		fw, _ := deck.FrameworkByID(id)
		return FrameworkSelection{
			Framework:    fw,
			Confidence:   80,
			Rationale:    "Rule table match on presentation type " + string(req.PresentationType) + ".",
			Alternatives: alternativesTo(id),
		}
	}

	// Custom decks: scan the brief and audience for known cues.
	haystack := strings.ToLower(req.Prompt + " " + req.Audience)
	for _, rule := range heuristicKeywords {
		if strings.Contains(haystack, rule.keyword) {
			fw, _ := deck.FrameworkByID(rule.frameworkID)
			return FrameworkSelection{
				Framework:    fw,
				Confidence:   65,
				Rationale:    "Keyword cue " + strconv.Quote(rule.keyword) + " in the brief.",
				Alternatives: alternativesTo(rule.frameworkID),
			}
		}
	}

	base := deck.BaselineFramework()
	return FrameworkSelection{
		Framework:    base,
		Confidence:   50,
		Rationale:    "No decisive cue; defaulting to the SCQA baseline.",
		Alternatives: alternativesTo(base.ID),
	}
}

var confidenceRE = regexp.MustCompile(`(?i)confidence[:\s]+(\d{1,3})`)

func (s *Service) llmSelectFramework(ctx context.Context, req deck.GenerationRequest) (FrameworkSelection, error) {
	frameworks, err := deck.Frameworks()
	if err != nil {
		return FrameworkSelection{}, err
	}
	system, user := promptSelectFramework(req, frameworks)
	out, err := s.llm.Complete(ctx, anthropic.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: 512,
	})
	if err != nil {
		return FrameworkSelection{}, err
	}

	// Scan the response for known framework ids; earliest mention wins,
	// baseline when nothing matches.
	text := strings.ToLower(out.Text)
	chosen := deck.BaselineFramework()
	bestIdx := -1
	for _, f := range frameworks {
		if idx := strings.Index(text, f.ID); idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			bestIdx = idx
			chosen = f
		}
	}

	confidence := 70
	if m := confidenceRE.FindStringSubmatch(out.Text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 0 && v <= 100 {
			confidence = v
		}
	}

	return FrameworkSelection{
		Framework:    chosen,
		Confidence:   confidence,
		Rationale:    clampText(out.Text, 600),
		Alternatives: alternativesTo(chosen.ID),
	}, nil
}

func alternativesTo(id string) []string {
	frameworks, err := deck.Frameworks()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(frameworks)-1)
	for _, f := range frameworks {
		if f.ID != id {
			out = append(out, f.ID)
		}
	}
	return out
}

func clampText(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
