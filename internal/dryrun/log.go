package dryrun

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// ExecutionLog records every step of a promoted dry-run record. It is
// append-only and survives in memory for fast reads; when a repository is
// attached, entries are mirrored there so the trace survives restarts.
// The log is cleared only through an explicit Clear call.
type ExecutionLog struct {
	repo   repository.ExecutionLogRepository
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []domain.LogEntry
}

// NewExecutionLog builds the log. The repository is optional.
func NewExecutionLog(repo repository.ExecutionLogRepository, logger *zap.Logger) *ExecutionLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionLog{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Hydrate loads persisted entries into memory, typically once at startup.
func (l *ExecutionLog) Hydrate(ctx context.Context) error {
	if l.repo == nil {
		return nil
	}

	entries, err := l.repo.List(ctx, 0)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}

// Append records one step. Persistence failures are logged and swallowed so
// a broken database never blocks a promotion in flight.
func (l *ExecutionLog) Append(ctx context.Context, cronName string, level domain.LogLevel, message string) domain.LogEntry {
	entry := domain.LogEntry{
		ID:        uuid.NewString(),
		CronName:  cronName,
		Level:     level,
		Message:   message,
		Timestamp: l.now().UTC(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.repo != nil {
		if err := l.repo.Append(context.WithoutCancel(ctx), &entry); err != nil {
			l.logger.Warn("failed to persist execution log entry", zap.Error(err))
		}
	}

	return entry
}

// Entries returns a copy of the log in append order.
func (l *ExecutionLog) Entries() []domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]domain.LogEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Clear discards all entries, in memory and persisted.
func (l *ExecutionLog) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()

	if l.repo == nil {
		return nil
	}
	return l.repo.Clear(ctx)
}
