package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SlideType identifies a slide's narrative role within the framework.
type SlideType string

const (
	SlideTitle          SlideType = "title"
	SlideProblem        SlideType = "problem"
	SlideSolution       SlideType = "solution"
	SlideBenefits       SlideType = "benefits"
	SlideImplementation SlideType = "implementation"
	SlideConclusion     SlideType = "conclusion"
	SlideSituation      SlideType = "situation"
	SlideComplication   SlideType = "complication"
	SlideQuestion       SlideType = "question"
	SlideAnswer         SlideType = "answer"
	SlideAgitation      SlideType = "agitation"
	SlideTask           SlideType = "task"
	SlideAction         SlideType = "action"
	SlideResult         SlideType = "result"
	SlideBefore         SlideType = "before"
	SlideAfter          SlideType = "after"
	SlideBridge         SlideType = "bridge"
	SlideWhat           SlideType = "what"
	SlideWhy            SlideType = "why"
	SlideHow            SlideType = "how"
	SlideContentGeneric SlideType = "content"
)

// SlideLayout selects the content payload shape.
type SlideLayout string

const (
	LayoutBullets  SlideLayout = "bullets"
	LayoutSections SlideLayout = "sections"
	LayoutMetrics  SlideLayout = "metrics"
	LayoutDiagram  SlideLayout = "diagram"
	LayoutTable    SlideLayout = "table"
)

type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type Metric struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Context string `json:"context,omitempty"`
}

type DiagramElement struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

type Diagram struct {
	Kind     string           `json:"kind"` // flow|cycle|hierarchy|comparison
	Elements []DiagramElement `json:"elements"`
}

type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Chart is an optional visual attachment on text-first layouts. It weighs
// into cognitive load but is never the primary payload.
type Chart struct {
	Kind   string   `json:"kind"` // bar|line|pie
	Title  string   `json:"title,omitempty"`
	Series []string `json:"series,omitempty"`
}

// SlideContent is a tagged union keyed by Layout: exactly one primary
// payload is present per tag, validated at construction. A Chart may
// accompany bullets, sections, or metrics layouts.
type SlideContent struct {
	Layout   SlideLayout `json:"layout"`
	Bullets  []string    `json:"bullets,omitempty"`
	Sections []Section   `json:"sections,omitempty"`
	Metrics  []Metric    `json:"metrics,omitempty"`
	Diagram  *Diagram    `json:"diagram,omitempty"`
	Table    *Table      `json:"table,omitempty"`
	Chart    *Chart      `json:"chart,omitempty"`
}

// NewSlideContent validates the union exhaustively: the tag's payload must
// be present and every other primary payload absent.
func NewSlideContent(c SlideContent) (SlideContent, error) {
	present := map[SlideLayout]bool{
		LayoutBullets:  len(c.Bullets) > 0,
		LayoutSections: len(c.Sections) > 0,
		LayoutMetrics:  len(c.Metrics) > 0,
		LayoutDiagram:  c.Diagram != nil,
		LayoutTable:    c.Table != nil,
	}
	switch c.Layout {
	case LayoutBullets, LayoutSections, LayoutMetrics, LayoutDiagram, LayoutTable:
	default:
		return SlideContent{}, fmt.Errorf("unknown layout %q", c.Layout)
	}
	if !present[c.Layout] {
		return SlideContent{}, fmt.Errorf("layout %q requires its payload", c.Layout)
	}
	for layout, has := range present {
		if layout != c.Layout && has {
			return SlideContent{}, fmt.Errorf("layout %q must not carry a %q payload", c.Layout, layout)
		}
	}
	if c.Chart != nil && (c.Layout == LayoutDiagram || c.Layout == LayoutTable) {
		return SlideContent{}, fmt.Errorf("chart attachment not allowed on layout %q", c.Layout)
	}
	return c, nil
}

// IsEmpty reports whether no primary payload is populated at all.
func (c SlideContent) IsEmpty() bool {
	return len(c.Bullets) == 0 && len(c.Sections) == 0 && len(c.Metrics) == 0 &&
		c.Diagram == nil && c.Table == nil
}

// Slide is one fully generated content unit of the deck. Mutated only by
// targeted refinement, which replaces Content wholesale.
type Slide struct {
	ID      string       `json:"id"`
	Type    SlideType    `json:"type"`
	Title   string       `json:"title"`
	Layout  SlideLayout  `json:"layout"`
	Content SlideContent `json:"content"`
}

// UnmarshalJSON keeps the union honest when slides come back over the wire.
func (s *Slide) UnmarshalJSON(data []byte) error {
	type alias Slide
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if strings.TrimSpace(string(a.Layout)) != "" && a.Content.Layout == "" {
		a.Content.Layout = a.Layout
	}
	if a.Layout == "" {
		a.Layout = a.Content.Layout
	}
	validated, err := NewSlideContent(a.Content)
	if err != nil {
		return fmt.Errorf("slide %q: %w", a.ID, err)
	}
	a.Content = validated
	*s = Slide(a)
	return nil
}
