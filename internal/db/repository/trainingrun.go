package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labzang/sentiment-server/internal/db/models"
	"github.com/uptrace/bun"
)

var ErrRunNotFound = errors.New("training run not found")

// ITrainingRunRepository persists training run records.
type ITrainingRunRepository interface {
	Create(ctx context.Context, run *models.TrainingRun) error
	Update(ctx context.Context, run *models.TrainingRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingRun, error)
	List(ctx context.Context, limit int) ([]*models.TrainingRun, error)
	Latest(ctx context.Context) (*models.TrainingRun, error)
}

type trainingRunRepository struct {
	db *bun.DB
}

func NewTrainingRunRepository(db *bun.DB) ITrainingRunRepository {
	return &trainingRunRepository{db: db}
}

func (r *trainingRunRepository) Create(ctx context.Context, run *models.TrainingRun) error {
	if _, err := r.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}
	return nil
}

func (r *trainingRunRepository) Update(ctx context.Context, run *models.TrainingRun) error {
	if _, err := r.db.NewUpdate().Model(run).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("failed to update training run %s: %w", run.ID, err)
	}
	return nil
}

func (r *trainingRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingRun, error) {
	run := &models.TrainingRun{}
	err := r.db.NewSelect().Model(run).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training run %s: %w", id, err)
	}
	return run, nil
}

func (r *trainingRunRepository) List(ctx context.Context, limit int) ([]*models.TrainingRun, error) {
	var runs []*models.TrainingRun
	q := r.db.NewSelect().Model(&runs).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	return runs, nil
}

func (r *trainingRunRepository) Latest(ctx context.Context) (*models.TrainingRun, error) {
	run := &models.TrainingRun{}
	err := r.db.NewSelect().Model(run).Order("created_at DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest training run: %w", err)
	}
	return run, nil
}
