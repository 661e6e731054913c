package deck

import "github.com/deckforge/deckforge-backend/internal/platform/envutil"

// PipelineConfig carries every tunable knob of the generation pipeline.
// All values are optional on the wire; Clamp() pins them to their bounds.
type PipelineConfig struct {
	MaxRefinementRounds    int `json:"max_refinement_rounds,omitempty"`
	TargetQualityScore     int `json:"target_quality_score,omitempty"`
	MinConfidenceThreshold int `json:"min_confidence_threshold,omitempty"`
	MinimumImprovement     int `json:"minimum_improvement,omitempty"`
	MinSlideScore          int `json:"min_slide_score,omitempty"`
	MinDeckScore           int `json:"min_deck_score,omitempty"`
	MaxSlideRetries        int `json:"max_slide_retries,omitempty"`
	MaxRefinementTargets   int `json:"max_refinement_targets,omitempty"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxRefinementRounds:    3,
		TargetQualityScore:     80,
		MinConfidenceThreshold: 60,
		MinimumImprovement:     2,
		MinSlideScore:          70,
		MinDeckScore:           70,
		MaxSlideRetries:        2,
		MaxRefinementTargets:   3,
	}
}

// PipelineConfigFromEnv starts from defaults and lets the environment
// override individual knobs. Bounds still apply.
func PipelineConfigFromEnv() PipelineConfig {
	def := DefaultPipelineConfig()
	cfg := PipelineConfig{
		MaxRefinementRounds:    envutil.Int("DECK_MAX_REFINEMENT_ROUNDS", def.MaxRefinementRounds),
		TargetQualityScore:     envutil.Int("DECK_TARGET_QUALITY_SCORE", def.TargetQualityScore),
		MinConfidenceThreshold: envutil.Int("DECK_MIN_CONFIDENCE_THRESHOLD", def.MinConfidenceThreshold),
		MinimumImprovement:     envutil.Int("DECK_MINIMUM_IMPROVEMENT", def.MinimumImprovement),
		MinSlideScore:          envutil.Int("DECK_MIN_SLIDE_SCORE", def.MinSlideScore),
		MinDeckScore:           envutil.Int("DECK_MIN_DECK_SCORE", def.MinDeckScore),
		MaxSlideRetries:        envutil.Int("DECK_MAX_SLIDE_RETRIES", def.MaxSlideRetries),
		MaxRefinementTargets:   envutil.Int("DECK_MAX_REFINEMENT_TARGETS", def.MaxRefinementTargets),
	}
	return cfg.Clamp()
}

// Merge overlays non-zero fields of o onto c. Used for per-request config
// bodies, where zero means "keep the server default".
func (c PipelineConfig) Merge(o PipelineConfig) PipelineConfig {
	if o.MaxRefinementRounds != 0 {
		c.MaxRefinementRounds = o.MaxRefinementRounds
	}
	if o.TargetQualityScore != 0 {
		c.TargetQualityScore = o.TargetQualityScore
	}
	if o.MinConfidenceThreshold != 0 {
		c.MinConfidenceThreshold = o.MinConfidenceThreshold
	}
	if o.MinimumImprovement != 0 {
		c.MinimumImprovement = o.MinimumImprovement
	}
	if o.MinSlideScore != 0 {
		c.MinSlideScore = o.MinSlideScore
	}
	if o.MinDeckScore != 0 {
		c.MinDeckScore = o.MinDeckScore
	}
	if o.MaxSlideRetries != 0 {
		c.MaxSlideRetries = o.MaxSlideRetries
	}
	if o.MaxRefinementTargets != 0 {
		c.MaxRefinementTargets = o.MaxRefinementTargets
	}
	return c
}

// Clamp pins every knob to its documented bounds.
func (c PipelineConfig) Clamp() PipelineConfig {
	c.MaxRefinementRounds = clampInt(c.MaxRefinementRounds, 1, 3)
	c.TargetQualityScore = clampInt(c.TargetQualityScore, 50, 100)
	c.MinConfidenceThreshold = clampInt(c.MinConfidenceThreshold, 0, 100)
	c.MinimumImprovement = clampInt(c.MinimumImprovement, 1, 20)
	c.MinSlideScore = clampInt(c.MinSlideScore, 0, 100)
	c.MinDeckScore = clampInt(c.MinDeckScore, 0, 100)
	c.MaxSlideRetries = clampInt(c.MaxSlideRetries, 0, 5)
	c.MaxRefinementTargets = clampInt(c.MaxRefinementTargets, 1, 10)
	return c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
