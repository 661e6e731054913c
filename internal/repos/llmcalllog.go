package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deckforge/deckforge-backend/internal/generation"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/types"
)

type LLMCallLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, logs []*types.LLMCallLog) ([]*types.LLMCallLog, error)
	ListByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID, limit int) ([]*types.LLMCallLog, error)
}

type llmCallLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLLMCallLogRepo(db *gorm.DB, baseLog *logger.Logger) LLMCallLogRepo {
	return &llmCallLogRepo{db: db, log: baseLog.With("repo", "LLMCallLogRepo")}
}

func (r *llmCallLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.LLMCallLog) ([]*types.LLMCallLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(logs) == 0 {
		return []*types.LLMCallLog{}, nil
	}
	for _, l := range logs {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *llmCallLogRepo) ListByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID, limit int) ([]*types.LLMCallLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if runID == uuid.Nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []*types.LLMCallLog
	if err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// llmCallRecorder adapts the repo to the pipeline's CallRecorder seam.
// Writes happen on the calling goroutine and failures only log, so a dead
// database never slows a generation down by more than one insert.
type llmCallRecorder struct {
	repo LLMCallLogRepo
	log  *logger.Logger
}

func NewLLMCallRecorder(repo LLMCallLogRepo, baseLog *logger.Logger) generation.CallRecorder {
	return &llmCallRecorder{repo: repo, log: baseLog.With("component", "LLMCallRecorder")}
}

func (r *llmCallRecorder) Record(ctx context.Context, rec generation.CallRecord) {
	row := &types.LLMCallLog{
		Model:        rec.Model,
		Prompt:       rec.Prompt,
		Response:     rec.Response,
		Success:      rec.Success,
		Error:        rec.Error,
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		DurationMS:   rec.DurationMS,
	}
	if runID, ok := generation.RunIDFromContext(ctx); ok {
		row.RunID = &runID
	}
	if _, err := r.repo.Create(context.WithoutCancel(ctx), nil, []*types.LLMCallLog{row}); err != nil {
		r.log.Warn("failed to persist llm call log", "error", err)
	}
}
