// Package dispatch defines the outbound boundary to the remote back-office
// notification API. The engine consumes the remote service only through the
// Client contract; HTTP shapes are owned by the remote side.
package dispatch

import (
	"context"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// Client is the remote notification API port.
type Client interface {
	// SendManual dispatches the given targets on the given channels and
	// returns one result per (target, channel) pair.
	SendManual(ctx context.Context, targets []domain.NotificationTarget, channels []domain.Channel) (*SendOutcome, error)

	// PreviewCron returns what a scheduled job would do, without side
	// effects.
	PreviewCron(ctx context.Context, cronName string) (*CronDryRun, error)

	// RunCronManual triggers a cron-specific side-effecting action for a
	// single record.
	RunCronManual(ctx context.Context, cronName string, payload map[string]any) (*ManualRunOutcome, error)

	// QueueStats, InvoiceQueue, and ContractQueue supply the raw entity
	// state the classifier and duplicate guard consume.
	QueueStats(ctx context.Context) (*QueueStats, error)
	InvoiceQueue(ctx context.Context) ([]InvoiceQueueEntry, error)
	ContractQueue(ctx context.Context) ([]ContractQueueEntry, error)
}

// SendOutcome aggregates one manual send call.
type SendOutcome struct {
	Sent    int
	Failed  int
	Results []domain.DispatchResult
}

// CronDryRun is the read-only preview of one cron job run.
type CronDryRun struct {
	CronName   string
	ExecutedAt time.Time
	Duration   time.Duration
	Summary    string
	Items      []CronDryRunItem
}

// CronDryRunItem is one would-do record of a dry run. The shape is
// cron-specific, but every item carries enough identity to be promoted to a
// real action.
type CronDryRunItem struct {
	EntityType  string
	EntityID    string
	Channels    []domain.Channel
	Condition   domain.Condition
	Description string
	Extra       map[string]any
}

// ManualRunOutcome is the result of a cron-specific manual action.
type ManualRunOutcome struct {
	Success bool
	Skipped bool
	Message string
	Details map[string]any
}

// QueueStats summarizes the pending notification queues.
type QueueStats struct {
	Invoices  int
	Contracts int
}

// InvoiceQueueEntry is one invoice awaiting notification, with the state
// the classifier needs already resolved by the remote service.
type InvoiceQueueEntry struct {
	InvoiceID      string
	CustomerName   string
	OverdueDays    int
	SentConditions []domain.Condition
}

// ContractQueueEntry is one contract awaiting notification.
type ContractQueueEntry struct {
	ContractID     string
	CustomerName   string
	Milestone      domain.Milestone
	SentConditions []domain.Condition
}
