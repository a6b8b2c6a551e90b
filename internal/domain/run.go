package domain

import "time"

// Run is the archived snapshot of a finished batch job, kept for audit.
type Run struct {
	ID          string
	JobID       string
	Status      JobStatus
	TotalCount  int
	SentCount   int
	FailedCount int
	Results     []DispatchResult
	StartedAt   time.Time
	FinishedAt  time.Time
	CreatedAt   time.Time
}
