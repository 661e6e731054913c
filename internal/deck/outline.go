package deck

// SlideOutline is one planned slide before content generation.
type SlideOutline struct {
	Number          int       `json:"number"`
	Type            SlideType `json:"type"`
	Title           string    `json:"title"`
	Purpose         string    `json:"purpose"`
	EstimatedTokens int       `json:"estimated_tokens"`
}

// Outline is the ordered plan of the deck. It is replaced wholesale during
// refinement attempts, never partially mutated; candidates are compared by
// validation score.
type Outline struct {
	Title                string         `json:"title"`
	Subtitle             string         `json:"subtitle,omitempty"`
	FrameworkID          string         `json:"framework_id"`
	TotalEstimatedTokens int            `json:"total_estimated_tokens"`
	Slides               []SlideOutline `json:"slides"`
}
