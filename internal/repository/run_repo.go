package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"gorm.io/gorm"
)

type ListRunsParams struct {
	Page     int
	PageSize int
}

// RunRepository archives terminal batch run snapshots.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, params ListRunsParams) ([]domain.Run, int64, error)
}

type GormRunRepo struct {
	db *gorm.DB
}

func NewGormRunRepo(db *gorm.DB) *GormRunRepo {
	return &GormRunRepo{db: db}
}

func (r *GormRunRepo) Create(ctx context.Context, run *domain.Run) error {
	model, err := runModelFromDomain(run)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if run != nil {
		run.CreatedAt = model.CreatedAt
	}
	return nil
}

func (r *GormRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	var model RunModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return runModelToDomain(&model)
}

func (r *GormRunRepo) List(ctx context.Context, params ListRunsParams) ([]domain.Run, int64, error) {
	query := r.db.WithContext(ctx).Model(&RunModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []RunModel
	err := query.
		Order("finished_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	runs := make([]domain.Run, 0, len(models))
	for i := range models {
		run, err := runModelToDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}

	return runs, total, nil
}
