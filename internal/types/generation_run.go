package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenerationRun is the persisted record of one pipeline execution. Result
// holds the final GenerationResult JSON once the run succeeds.
type GenerationRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PresentationID *uuid.UUID     `gorm:"type:uuid;index" json:"presentation_id,omitempty"`
	Status         string         `gorm:"column:status;not null;index" json:"status"` // queued|running|succeeded|failed
	Phase          string         `gorm:"column:phase;not null;index" json:"phase"`
	Progress       int            `gorm:"column:progress;not null;default:0" json:"progress"`
	FrameworkID    string         `gorm:"column:framework_id" json:"framework_id"`
	SlideCount     int            `gorm:"column:slide_count;not null;default:0" json:"slide_count"`
	DeckScore      int            `gorm:"column:deck_score;not null;default:0" json:"deck_score"`
	TokensUsed     int            `gorm:"column:tokens_used;not null;default:0" json:"tokens_used"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	Request        datatypes.JSON `gorm:"type:jsonb;column:request" json:"request"`
	Result         datatypes.JSON `gorm:"type:jsonb;column:result" json:"result,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationRun) TableName() string { return "generation_run" }

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)
