package deck

// Metadata describes the deck as a whole.
type Metadata struct {
	Audience         string           `json:"audience,omitempty"`
	Tone             Tone             `json:"tone,omitempty"`
	SlideCount       int              `json:"slide_count"`
	PresentationType PresentationType `json:"presentation_type"`
	FrameworkID      string           `json:"framework_id,omitempty"`
}

// Presentation is the aggregate root produced at the end of generation.
// Mutated afterward only through explicit update operations.
type Presentation struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Metadata Metadata `json:"metadata"`
	Slides   []Slide  `json:"slides"`
}

// Clone returns a deep copy. The refinement engine mutates candidates, not
// the accepted state, so copies must not share slide content.
func (p Presentation) Clone() Presentation {
	out := p
	out.Slides = make([]Slide, len(p.Slides))
	for i, s := range p.Slides {
		out.Slides[i] = cloneSlide(s)
	}
	return out
}

func cloneSlide(s Slide) Slide {
	c := s.Content
	if c.Bullets != nil {
		c.Bullets = append([]string(nil), c.Bullets...)
	}
	if c.Sections != nil {
		c.Sections = append([]Section(nil), c.Sections...)
	}
	if c.Metrics != nil {
		c.Metrics = append([]Metric(nil), c.Metrics...)
	}
	if c.Diagram != nil {
		d := *c.Diagram
		d.Elements = append([]DiagramElement(nil), c.Diagram.Elements...)
		c.Diagram = &d
	}
	if c.Table != nil {
		t := *c.Table
		t.Columns = append([]string(nil), c.Table.Columns...)
		t.Rows = make([][]string, len(c.Table.Rows))
		for i, row := range c.Table.Rows {
			t.Rows[i] = append([]string(nil), row...)
		}
		c.Table = &t
	}
	if c.Chart != nil {
		ch := *c.Chart
		ch.Series = append([]string(nil), c.Chart.Series...)
		c.Chart = &ch
	}
	s.Content = c
	return s
}
