package generation

import (
	"fmt"
	"strings"

	"github.com/deckforge/deckforge-backend/internal/deck"
)

func promptSelectFramework(req deck.GenerationRequest, frameworks []deck.Framework) (system, user string) {
	var list strings.Builder
	for _, f := range frameworks {
		fmt.Fprintf(&list, "- %s: %s\n", f.ID, f.Description)
	}

	system = strings.TrimSpace(`
You are a presentation strategist. Pick the single best narrative framework
for the brief from the provided closed set. Respond with the framework id
on the first line, then "confidence: <0-100>", then a one-paragraph
rationale. Do not invent frameworks outside the list.
`)
	user = "BRIEF:\n" + strings.TrimSpace(req.Prompt) + "\n\n" +
		"PRESENTATION_TYPE: " + string(req.PresentationType) + "\n" +
		"AUDIENCE: " + strings.TrimSpace(req.Audience) + "\n" +
		"TONE: " + string(req.Tone) + "\n\n" +
		"FRAMEWORKS:\n" + list.String()
	return system, user
}

func promptGenerateOutline(req deck.GenerationRequest, fw deck.Framework) (system, user string) {
	seq := fw.SlideSequenceFor(req.SlideCount)
	types := make([]string, len(seq))
	for i, t := range seq {
		types[i] = string(t)
	}

	system = strings.TrimSpace(`
You plan presentation decks. Return ONLY a JSON object (no markdown fences,
no commentary) with this shape:
{"title": string, "subtitle": string, "slides": [{"number": int, "type": string, "title": string, "purpose": string, "estimated_tokens": int}]}
The slides array must have exactly the requested count, numbered from 1, and
the "type" of each slide must follow the given framework sequence in order.
Each "purpose" is one line explaining what the slide must accomplish.
`)
	user = "BRIEF:\n" + strings.TrimSpace(req.Prompt) + "\n\n" +
		"PRESENTATION_TYPE: " + string(req.PresentationType) + "\n" +
		"AUDIENCE: " + strings.TrimSpace(req.Audience) + "\n" +
		"TONE: " + string(req.Tone) + "\n" +
		fmt.Sprintf("SLIDE_COUNT: %d\n", req.SlideCount) +
		"FRAMEWORK: " + fw.Name + "\n" +
		"SLIDE_TYPE_SEQUENCE: " + strings.Join(types, ", ")
	return system, user
}

func promptValidateOutline(outline deck.Outline, req deck.GenerationRequest, fw deck.Framework) (system, user string) {
	system = strings.TrimSpace(`
You review presentation outlines. Score the outline 0-100 on each dimension
and return ONLY JSON:
{"overall_score": int, "framework_alignment": {"score": int, "rationale": string},
 "logical_flow": {"score": int, "rationale": string},
 "audience_suitability": {"score": int, "rationale": string},
 "completeness": {"score": int, "rationale": string},
 "must_fix": [string], "improvements": [string]}
Rubric: framework_alignment = slide types follow the framework's sequence;
logical_flow = each slide sets up the next; audience_suitability = titles and
purposes match the stated audience and tone; completeness = the brief's core
points are all covered by some slide. overall_score is your holistic judgement,
not a forced average. List hard failures in must_fix only when a slide cannot
serve its purpose as planned.
`)
	var slides strings.Builder
	for _, so := range outline.Slides {
		fmt.Fprintf(&slides, "%d. [%s] %s — %s\n", so.Number, so.Type, so.Title, so.Purpose)
	}
	user = "FRAMEWORK: " + fw.Name + "\n" +
		"AUDIENCE: " + strings.TrimSpace(req.Audience) + "\n" +
		"TONE: " + string(req.Tone) + "\n" +
		"BRIEF:\n" + strings.TrimSpace(req.Prompt) + "\n\n" +
		"OUTLINE: " + outline.Title + "\n" + slides.String()
	return system, user
}

func promptGenerateSlide(so deck.SlideOutline, pctx PresentationContext, layout deck.SlideLayout) (system, user string) {
	var shape string
	switch layout {
	case deck.LayoutBullets:
		shape = `{"title": string, "layout": "bullets", "content": {"layout": "bullets", "bullets": [string, ...]}}
Use 3-5 bullets, each a single assertive line.`
	case deck.LayoutSections:
		shape = `{"title": string, "layout": "sections", "content": {"layout": "sections", "sections": [{"heading": string, "body": string}, ...]}}
Use 2-3 sections; bodies are 1-3 sentences.`
	case deck.LayoutMetrics:
		shape = `{"title": string, "layout": "metrics", "content": {"layout": "metrics", "metrics": [{"label": string, "value": string, "context": string}, ...]}}
Use 3-4 metrics with concrete values.`
	case deck.LayoutDiagram:
		shape = `{"title": string, "layout": "diagram", "content": {"layout": "diagram", "diagram": {"kind": "flow", "elements": [{"label": string, "detail": string}, ...]}}}
Use 3-6 elements in process order.`
	case deck.LayoutTable:
		shape = `{"title": string, "layout": "table", "content": {"layout": "table", "table": {"columns": [string, ...], "rows": [[string, ...], ...]}}}
Use 2-4 columns and at most 5 rows.`
	}

	system = strings.TrimSpace(`
You write one presentation slide at a time. Return ONLY a JSON object
matching the requested shape exactly (no markdown fences, no commentary).
Keep the slide within a "7 plus or minus 2 items" cognitive budget.
`) + "\n\nSHAPE:\n" + shape

	user = "DECK: " + pctx.Title + "\n" +
		"AUDIENCE: " + strings.TrimSpace(pctx.Audience) + "\n" +
		"TONE: " + string(pctx.Tone) + "\n" +
		fmt.Sprintf("SLIDE %d TYPE: %s\n", so.Number, so.Type) +
		"SLIDE_TITLE: " + so.Title + "\n" +
		"PURPOSE: " + so.Purpose
	if fb := strings.TrimSpace(pctx.Feedback); fb != "" {
		user += "\n\nREVIEWER_FEEDBACK (address these points):\n" + fb
	}
	return system, user
}

func promptValidateSlide(slide deck.Slide, so deck.SlideOutline, deckTitle string) (system, user string) {
	system = strings.TrimSpace(`
You review one presentation slide. Score 0-100 per dimension and return ONLY JSON:
{"overall_score": int,
 "content_quality": {"score": int, "rationale": string},
 "readability": {"score": int, "rationale": string},
 "visual_hierarchy": {"score": int, "rationale": string},
 "alignment_with_purpose": {"score": int, "rationale": string, "meets_objective": bool},
 "must_fix": [string], "improvements": [string]}
For readability apply the "7 plus or minus 2 items" rule: count bullet points,
2 per section, 1 per metric, 3 for a chart or diagram, 4 for a table. A weighted
count over 9 is high cognitive load and should cost readability points.
must_fix is only for defects that make the slide unusable as-is.
`)
	raw, _ := slideJSON(slide)
	user = "DECK: " + deckTitle + "\n" +
		fmt.Sprintf("OUTLINE SLIDE %d TYPE: %s\n", so.Number, so.Type) +
		"PLANNED_PURPOSE: " + so.Purpose + "\n\n" +
		"SLIDE_JSON:\n" + raw
	return system, user
}

func promptValidateDeck(p deck.Presentation, req deck.GenerationRequest) (system, user string) {
	system = strings.TrimSpace(`
You review a whole presentation deck. Score 0-100 per dimension and return ONLY JSON:
{"overall_score": int,
 "consistency": {"score": int, "rationale": string},
 "narrative_arc": {"score": int, "rationale": string},
 "audience_fit": {"score": int, "rationale": string},
 "coverage": {"score": int, "rationale": string},
 "slide_scores": [int],
 "must_fix": [string], "improvements": [string]}
consistency = terminology and framing agree across slides; narrative_arc =
the deck opens, builds, and closes as one argument; audience_fit = depth and
tone match the audience; coverage = the brief is fully addressed.
slide_scores has one 0-100 entry per slide in order.
`)
	var slides strings.Builder
	for i, s := range p.Slides {
		raw, _ := slideJSON(s)
		fmt.Fprintf(&slides, "--- slide %d ---\n%s\n", i+1, raw)
	}
	user = "BRIEF:\n" + strings.TrimSpace(req.Prompt) + "\n" +
		"AUDIENCE: " + strings.TrimSpace(req.Audience) + "\n" +
		"TONE: " + string(req.Tone) + "\n\n" +
		"DECK: " + p.Title + "\n" + slides.String()
	return system, user
}
