package generation

type Phase string

const (
	PhaseFrameworkSelection Phase = "framework_selection"
	PhaseOutline            Phase = "outline"
	PhaseOutlineValidation  Phase = "outline_validation"
	PhaseSlides             Phase = "slides"
	PhaseDeckValidation     Phase = "deck_validation"
	PhaseRefinement         Phase = "refinement"
	PhaseComplete           Phase = "complete"
)

// ProgressEvent is the only coupling to the UI layer: a snapshot of where
// the pipeline is, pushed through an injectable observer.
type ProgressEvent struct {
	Phase        Phase  `json:"phase"`
	Progress     int    `json:"progress"` // 0-100 across the whole run
	Message      string `json:"message"`
	Round        int    `json:"round,omitempty"`
	TotalRounds  int    `json:"total_rounds,omitempty"`
	CurrentScore int    `json:"current_score,omitempty"`
	TargetScore  int    `json:"target_score,omitempty"`
}

type ProgressObserver func(ProgressEvent)

func (o ProgressObserver) emit(ev ProgressEvent) {
	if o != nil {
		o(ev)
	}
}
