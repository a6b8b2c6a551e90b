// Package events publishes batch progress to interested consumers outside
// the process (dashboards, audit trails) over AMQP.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

const progressExchangeName = "notify.progress"

// ProgressEvent is the broker payload emitted once per processed target and
// once when a job reaches a terminal state.
type ProgressEvent struct {
	JobID      string                     `json:"jobId"`
	Status     domain.JobStatus           `json:"status"`
	Total      int                        `json:"total"`
	Current    int                        `json:"current"`
	Sent       int                        `json:"sent"`
	Failed     int                        `json:"failed"`
	Target     *domain.NotificationTarget `json:"target,omitempty"`
	Terminal   bool                       `json:"terminal"`
	OccurredAt time.Time                  `json:"occurredAt"`
}

func (e ProgressEvent) Validate() error {
	if strings.TrimSpace(e.JobID) == "" {
		return fmt.Errorf("jobId is required")
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid job status %q", e.Status)
	}
	return nil
}

// RoutingKey groups events by terminal/progress so consumers can bind
// selectively, e.g. batch.terminal.
func (e ProgressEvent) RoutingKey() string {
	if e.Terminal {
		return "batch.terminal"
	}
	return "batch.progress"
}

// Publisher is the progress event sink.
type Publisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event ProgressEvent) error { return nil }
func (NopPublisher) Close() error                                           { return nil }
