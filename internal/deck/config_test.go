package deck

import "testing"

func TestPipelineConfigClampBounds(t *testing.T) {
	over := PipelineConfig{
		MaxRefinementRounds:    10,
		TargetQualityScore:     150,
		MinConfidenceThreshold: 120,
		MinimumImprovement:     50,
		MinSlideScore:          130,
		MinDeckScore:           -5,
		MaxSlideRetries:        9,
		MaxRefinementTargets:   25,
	}.Clamp()

	if over.MaxRefinementRounds != 3 {
		t.Errorf("MaxRefinementRounds = %d, want 3", over.MaxRefinementRounds)
	}
	if over.TargetQualityScore != 100 {
		t.Errorf("TargetQualityScore = %d, want 100", over.TargetQualityScore)
	}
	if over.MinConfidenceThreshold != 100 {
		t.Errorf("MinConfidenceThreshold = %d, want 100", over.MinConfidenceThreshold)
	}
	if over.MinimumImprovement != 20 {
		t.Errorf("MinimumImprovement = %d, want 20", over.MinimumImprovement)
	}
	if over.MinSlideScore != 100 {
		t.Errorf("MinSlideScore = %d, want 100", over.MinSlideScore)
	}
	if over.MinDeckScore != 0 {
		t.Errorf("MinDeckScore = %d, want 0", over.MinDeckScore)
	}
	if over.MaxSlideRetries != 5 {
		t.Errorf("MaxSlideRetries = %d, want 5", over.MaxSlideRetries)
	}
	if over.MaxRefinementTargets != 10 {
		t.Errorf("MaxRefinementTargets = %d, want 10", over.MaxRefinementTargets)
	}

	under := PipelineConfig{TargetQualityScore: 10, MaxSlideRetries: -1}.Clamp()
	if under.MaxRefinementRounds != 1 || under.MinimumImprovement != 1 || under.MaxRefinementTargets != 1 {
		t.Errorf("lower bounds not applied: %+v", under)
	}
	if under.TargetQualityScore != 50 {
		t.Errorf("TargetQualityScore = %d, want floor 50", under.TargetQualityScore)
	}
	if under.MaxSlideRetries != 0 {
		t.Errorf("MaxSlideRetries = %d, want floor 0", under.MaxSlideRetries)
	}
}

func TestPipelineConfigMergeKeepsZeroFields(t *testing.T) {
	base := DefaultPipelineConfig()
	merged := base.Merge(PipelineConfig{TargetQualityScore: 90, MaxSlideRetries: 1})
	if merged.TargetQualityScore != 90 {
		t.Errorf("TargetQualityScore = %d, want override 90", merged.TargetQualityScore)
	}
	if merged.MaxSlideRetries != 1 {
		t.Errorf("MaxSlideRetries = %d, want override 1", merged.MaxSlideRetries)
	}
	if merged.MaxRefinementRounds != base.MaxRefinementRounds {
		t.Errorf("MaxRefinementRounds changed on zero-field merge")
	}
	if merged.MinSlideScore != base.MinSlideScore {
		t.Errorf("MinSlideScore changed on zero-field merge")
	}
}

func TestPipelineConfigFromEnvDefaults(t *testing.T) {
	cfg := PipelineConfigFromEnv()
	if cfg != DefaultPipelineConfig() {
		t.Errorf("env-free config = %+v, want defaults", cfg)
	}
}
