package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LLMCallLog is the audit row for a single model completion. Prompt and
// response are stored verbatim so bad generations can be replayed offline.
type LLMCallLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID        *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
	Model        string         `gorm:"column:model;not null" json:"model"`
	Prompt       string         `gorm:"column:prompt" json:"prompt"`
	Response     string         `gorm:"column:response" json:"response"`
	Success      bool           `gorm:"column:success;not null" json:"success"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	InputTokens  int            `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens int            `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	DurationMS   int64          `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LLMCallLog) TableName() string { return "llm_call_log" }
