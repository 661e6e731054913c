package deck

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewSlideContent_RequiresTagPayload(t *testing.T) {
	_, err := NewSlideContent(SlideContent{Layout: LayoutBullets})
	if err == nil {
		t.Fatalf("expected error for bullets layout without bullets")
	}
}

func TestNewSlideContent_RejectsForeignPayload(t *testing.T) {
	_, err := NewSlideContent(SlideContent{
		Layout:  LayoutBullets,
		Bullets: []string{"a"},
		Table:   &Table{Columns: []string{"x"}},
	})
	if err == nil {
		t.Fatalf("expected error for bullets layout carrying a table")
	}
}

func TestNewSlideContent_RejectsUnknownLayout(t *testing.T) {
	_, err := NewSlideContent(SlideContent{Layout: "freeform", Bullets: []string{"a"}})
	if err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestNewSlideContent_ChartAttachmentRules(t *testing.T) {
	_, err := NewSlideContent(SlideContent{
		Layout:  LayoutBullets,
		Bullets: []string{"a"},
		Chart:   &Chart{Kind: "bar"},
	})
	if err != nil {
		t.Fatalf("chart on bullets should be allowed: %v", err)
	}
	_, err = NewSlideContent(SlideContent{
		Layout:  LayoutDiagram,
		Diagram: &Diagram{Kind: "flow", Elements: []DiagramElement{{Label: "a"}}},
		Chart:   &Chart{Kind: "bar"},
	})
	if err == nil {
		t.Fatalf("chart on diagram layout should be rejected")
	}
}

func TestPresentation_JSONRoundTripIsIdempotent(t *testing.T) {
	p := Presentation{
		ID:       "p1",
		Title:    "Intro to X",
		Subtitle: "Why it matters",
		Metadata: Metadata{
			Audience:         "execs",
			Tone:             ToneProfessional,
			SlideCount:       3,
			PresentationType: TypeBusiness,
			FrameworkID:      "problem-solution",
		},
		Slides: []Slide{
			{ID: "s1", Type: SlideTitle, Title: "Intro to X", Layout: LayoutSections,
				Content: SlideContent{Layout: LayoutSections, Sections: []Section{{Heading: "h", Body: "b"}}}},
			{ID: "s2", Type: SlideProblem, Title: "The problem", Layout: LayoutBullets,
				Content: SlideContent{Layout: LayoutBullets, Bullets: []string{"x", "y"}, Chart: &Chart{Kind: "bar"}}},
			{ID: "s3", Type: SlideBenefits, Title: "Benefits", Layout: LayoutMetrics,
				Content: SlideContent{Layout: LayoutMetrics, Metrics: []Metric{{Label: "ROI", Value: "3x"}}}},
		},
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Presentation
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(p, back) {
		t.Fatalf("round trip changed the presentation:\nwant %#v\ngot  %#v", p, back)
	}

	raw2, err := json.Marshal(back)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(raw) != string(raw2) {
		t.Fatalf("serialization not idempotent:\n%s\n%s", raw, raw2)
	}
}

func TestSlideUnmarshal_RejectsBrokenUnion(t *testing.T) {
	raw := `{"id":"s1","type":"problem","title":"t","layout":"bullets","content":{"layout":"bullets"}}`
	var s Slide
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		t.Fatalf("expected union validation error")
	}
}

func TestPresentationClone_IsDeep(t *testing.T) {
	p := Presentation{
		Slides: []Slide{{
			ID: "s1", Type: SlideProblem, Layout: LayoutBullets,
			Content: SlideContent{Layout: LayoutBullets, Bullets: []string{"a"}},
		}},
	}
	c := p.Clone()
	c.Slides[0].Content.Bullets[0] = "mutated"
	if p.Slides[0].Content.Bullets[0] != "a" {
		t.Fatalf("clone shares bullet storage")
	}
}
