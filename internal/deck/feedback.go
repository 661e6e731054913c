package deck

// DimensionScore is one scored rubric dimension with its rationale.
type DimensionScore struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale,omitempty"`
}

// OutlineFeedback scores an outline along the four fixed dimensions.
type OutlineFeedback struct {
	OverallScore        int            `json:"overall_score"`
	FrameworkAlignment  DimensionScore `json:"framework_alignment"`
	LogicalFlow         DimensionScore `json:"logical_flow"`
	AudienceSuitability DimensionScore `json:"audience_suitability"`
	Completeness        DimensionScore `json:"completeness"`
	MustFix             []string       `json:"must_fix,omitempty"`
	Improvements        []string       `json:"improvements,omitempty"`
}

// AlignmentScore extends a dimension with the hard pass/fail judgement.
type AlignmentScore struct {
	Score          int    `json:"score"`
	Rationale      string `json:"rationale,omitempty"`
	MeetsObjective bool   `json:"meets_objective"`
}

// SlideFeedback scores a single generated slide.
type SlideFeedback struct {
	OverallScore         int            `json:"overall_score"`
	ContentQuality       DimensionScore `json:"content_quality"`
	Readability          DimensionScore `json:"readability"`
	VisualHierarchy      DimensionScore `json:"visual_hierarchy"`
	AlignmentWithPurpose AlignmentScore `json:"alignment_with_purpose"`
	CognitiveLoad        string         `json:"cognitive_load"` // low|medium|high
	MustFix              []string       `json:"must_fix,omitempty"`
	Improvements         []string       `json:"improvements,omitempty"`
}

// Passes applies the acceptance rule: score threshold and no must-fix.
func (f SlideFeedback) Passes(minScore int) bool {
	return f.OverallScore >= minScore && len(f.MustFix) == 0
}

// DeckFeedback scores the assembled deck as a whole.
type DeckFeedback struct {
	OverallScore     int             `json:"overall_score"`
	Consistency      DimensionScore  `json:"consistency"`
	NarrativeArc     DimensionScore  `json:"narrative_arc"`
	AudienceFit      DimensionScore  `json:"audience_fit"`
	Coverage         DimensionScore  `json:"coverage"`
	SlideScores      []int           `json:"slide_scores,omitempty"`
	SlideFeedback    []SlideFeedback `json:"slide_feedback,omitempty"`
	MustFix          []string        `json:"must_fix,omitempty"`
	Improvements     []string        `json:"improvements,omitempty"`
}
