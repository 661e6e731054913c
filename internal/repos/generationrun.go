package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/types"
)

type GenerationRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.GenerationRun) (*types.GenerationRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationRun, error)
	List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.GenerationRun, error)
	GetLatestByPresentationID(ctx context.Context, tx *gorm.DB, presentationID uuid.UUID) (*types.GenerationRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.GenerationRun) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunStatusQueued
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *generationRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []*types.GenerationRun
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *generationRunRepo) GetLatestByPresentationID(ctx context.Context, tx *gorm.DB, presentationID uuid.UUID) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if presentationID == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	err := transaction.WithContext(ctx).
		Where("presentation_id = ?", presentationID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.GenerationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
