package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// RunModel is the persistence model for the runs table. Results are stored
// as a JSONB snapshot because the engine never queries individual results.
type RunModel struct {
	ID          string           `gorm:"type:uuid;primaryKey"`
	JobID       string           `gorm:"type:uuid;not null"`
	Status      domain.JobStatus `gorm:"type:varchar(20);not null"`
	TotalCount  int              `gorm:"not null"`
	SentCount   int              `gorm:"not null"`
	FailedCount int              `gorm:"not null"`
	Results     string           `gorm:"type:jsonb;not null;default:'[]'"`
	StartedAt   time.Time        `gorm:"not null"`
	FinishedAt  time.Time        `gorm:"not null"`
	CreatedAt   time.Time
}

func (RunModel) TableName() string {
	return "runs"
}

// LogEntryModel is the persistence model for execution_log_entries.
type LogEntryModel struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	CronName  string          `gorm:"type:varchar(100)"`
	Level     domain.LogLevel `gorm:"type:varchar(10);not null"`
	Message   string          `gorm:"type:text;not null"`
	Timestamp time.Time       `gorm:"not null"`
	CreatedAt time.Time
}

func (LogEntryModel) TableName() string {
	return "execution_log_entries"
}

type storedDispatchResult struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Channel    string `json:"channel"`
	Success    bool   `json:"success"`
	Recipient  string `json:"recipient,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runModelFromDomain(r *domain.Run) (*RunModel, error) {
	if r == nil {
		return nil, nil
	}

	stored := make([]storedDispatchResult, 0, len(r.Results))
	for _, result := range r.Results {
		stored = append(stored, storedDispatchResult{
			EntityType: result.Target.EntityType.String(),
			EntityID:   result.Target.EntityID,
			Channel:    result.Channel.String(),
			Success:    result.Success,
			Recipient:  result.Recipient,
			Error:      result.Error,
		})
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run results: %w", err)
	}

	return &RunModel{
		ID:          r.ID,
		JobID:       r.JobID,
		Status:      r.Status,
		TotalCount:  r.TotalCount,
		SentCount:   r.SentCount,
		FailedCount: r.FailedCount,
		Results:     string(payload),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func runModelToDomain(m *RunModel) (*domain.Run, error) {
	if m == nil {
		return nil, nil
	}

	var stored []storedDispatchResult
	if m.Results != "" {
		if err := json.Unmarshal([]byte(m.Results), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run results: %w", err)
		}
	}

	results := make([]domain.DispatchResult, 0, len(stored))
	for _, result := range stored {
		results = append(results, domain.DispatchResult{
			Target: domain.NotificationTarget{
				EntityType: domain.EntityType(result.EntityType),
				EntityID:   result.EntityID,
			},
			Channel:   domain.Channel(result.Channel),
			Success:   result.Success,
			Recipient: result.Recipient,
			Error:     result.Error,
		})
	}

	return &domain.Run{
		ID:          m.ID,
		JobID:       m.JobID,
		Status:      m.Status,
		TotalCount:  m.TotalCount,
		SentCount:   m.SentCount,
		FailedCount: m.FailedCount,
		Results:     results,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func logEntryModelFromDomain(e *domain.LogEntry) *LogEntryModel {
	if e == nil {
		return nil
	}

	return &LogEntryModel{
		ID:        e.ID,
		CronName:  e.CronName,
		Level:     e.Level,
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
}

func logEntryModelToDomain(m *LogEntryModel) *domain.LogEntry {
	if m == nil {
		return nil
	}

	return &domain.LogEntry{
		ID:        m.ID,
		CronName:  m.CronName,
		Level:     m.Level,
		Message:   m.Message,
		Timestamp: m.Timestamp,
	}
}
