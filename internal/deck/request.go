package deck

import (
	"fmt"
	"strings"
)

type PresentationType string

const (
	TypeBusiness       PresentationType = "business"
	TypeTechnical      PresentationType = "technical"
	TypeProcess        PresentationType = "process"
	TypeTransformation PresentationType = "transformation"
	TypePOV            PresentationType = "pov"
	TypeCustom         PresentationType = "custom"
)

type Tone string

const (
	ToneProfessional   Tone = "professional"
	ToneConversational Tone = "conversational"
	ToneTechnical      Tone = "technical"
	ToneExecutive      Tone = "executive"
)

// GenerationRequest is the immutable input to one generation run.
type GenerationRequest struct {
	Prompt           string           `json:"prompt"`
	PresentationType PresentationType `json:"presentation_type"`
	SlideCount       int              `json:"slide_count"`
	Audience         string           `json:"audience,omitempty"`
	Tone             Tone             `json:"tone,omitempty"`
}

func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	switch r.PresentationType {
	case TypeBusiness, TypeTechnical, TypeProcess, TypeTransformation, TypePOV, TypeCustom:
	case "":
		return fmt.Errorf("presentation_type is required")
	default:
		return fmt.Errorf("unknown presentation_type %q", r.PresentationType)
	}
	if r.SlideCount < 1 || r.SlideCount > 30 {
		return fmt.Errorf("slide_count must be between 1 and 30, got %d", r.SlideCount)
	}
	switch r.Tone {
	case ToneProfessional, ToneConversational, ToneTechnical, ToneExecutive, "":
	default:
		return fmt.Errorf("unknown tone %q", r.Tone)
	}
	return nil
}
