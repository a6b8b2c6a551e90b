package repository

import (
	"context"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// ExecutionLogRepository persists manual execution log entries so the trace
// of a promoted dry-run record survives restarts. Entries are append-only;
// Clear is only reached through an explicit user action.
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
	List(ctx context.Context, limit int) ([]domain.LogEntry, error)
	Clear(ctx context.Context) error
}

type GormExecutionLogRepo struct {
	db *gorm.DB
}

func NewGormExecutionLogRepo(db *gorm.DB) *GormExecutionLogRepo {
	return &GormExecutionLogRepo{db: db}
}

func (r *GormExecutionLogRepo) Append(ctx context.Context, entry *domain.LogEntry) error {
	if entry == nil {
		return nil
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(logEntryModelFromDomain(entry)).Error
}

func (r *GormExecutionLogRepo) List(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit < 1 {
		limit = 200
	}

	var models []LogEntryModel
	err := r.db.WithContext(ctx).
		Order("timestamp ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LogEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *logEntryModelToDomain(&models[i]))
	}
	return entries, nil
}

func (r *GormExecutionLogRepo) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&LogEntryModel{}).Error
}
