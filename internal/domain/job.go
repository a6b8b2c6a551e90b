package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a batch dispatch job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "IDLE"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusPaused    JobStatus = "PAUSED"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusIdle, JobStatusRunning, JobStatusPaused, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the job can no longer make progress.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// DispatchResult is the outcome of one (target, channel) send. Immutable
// once produced.
type DispatchResult struct {
	Target    NotificationTarget
	Channel   Channel
	Success   bool
	Recipient string
	Error     string
}

// BatchJob is the unit of work for one controller run. It is consumed
// entirely by a single run and discarded once that run is terminal.
type BatchJob struct {
	ID       string
	Targets  []NotificationTarget
	Channels []Channel
}

func (j BatchJob) Validate() error {
	if len(j.Targets) == 0 {
		return fmt.Errorf("%w: job must include at least one target", ErrValidation)
	}
	if len(j.Channels) == 0 {
		return fmt.Errorf("%w: job must include at least one channel", ErrValidation)
	}
	for i, target := range j.Targets {
		if err := target.Validate(); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}
	for _, channel := range j.Channels {
		if !channel.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", ErrValidation, channel)
		}
	}
	return nil
}

// BatchProgress is the controller-owned view of job execution. External
// readers only ever receive copies produced by Clone.
type BatchProgress struct {
	JobID         string
	Status        JobStatus
	Total         int
	Current       int
	CurrentTarget *NotificationTarget
	Sent          int
	Failed        int
	Results       []DispatchResult
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// IdleProgress is the initial shape and the shape restored by clear().
func IdleProgress() BatchProgress {
	return BatchProgress{Status: JobStatusIdle}
}

// Clone returns a deep copy safe to hand to external readers.
func (p BatchProgress) Clone() BatchProgress {
	cloned := p

	if p.CurrentTarget != nil {
		target := *p.CurrentTarget
		cloned.CurrentTarget = &target
	}
	if p.Results != nil {
		cloned.Results = make([]DispatchResult, len(p.Results))
		copy(cloned.Results, p.Results)
	}
	if p.StartedAt != nil {
		startedAt := *p.StartedAt
		cloned.StartedAt = &startedAt
	}
	if p.FinishedAt != nil {
		finishedAt := *p.FinishedAt
		cloned.FinishedAt = &finishedAt
	}

	return cloned
}
