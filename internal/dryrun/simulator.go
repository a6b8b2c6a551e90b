// Package dryrun previews scheduled notification jobs and promotes
// individual previewed records into real actions. A preview never causes a
// side effect; only an explicit promotion does.
package dryrun

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"go.uber.org/zap"
)

// PromotionKind selects the execution path for a promoted dry-run record.
type PromotionKind string

const (
	// PromotionKindNotificationSend dispatches the record through the batch
	// controller, same path as a manually assembled batch.
	PromotionKindNotificationSend PromotionKind = "notification-send"

	// PromotionKindCronManualRun triggers the cron-specific manual action on
	// the remote API for a single record.
	PromotionKindCronManualRun PromotionKind = "cron-manual-run"
)

func (k PromotionKind) IsValid() bool {
	return k == PromotionKindNotificationSend || k == PromotionKindCronManualRun
}

// Promotion is one previewed record the operator chose to execute for real.
type Promotion struct {
	Kind     PromotionKind
	CronName string

	// Target and Channels drive a notification-send promotion.
	Target   *domain.NotificationTarget
	Channels []domain.Channel

	// Payload is forwarded verbatim on a cron-manual-run promotion.
	Payload map[string]any
}

// PromotionResult reports what the promotion actually did.
type PromotionResult struct {
	Kind     PromotionKind
	Success  bool
	Skipped  bool
	Message  string
	Details  map[string]any
	Progress *domain.BatchProgress
}

// Dispatcher is the slice of the batch controller a promotion needs.
type Dispatcher interface {
	Start(ctx context.Context, job domain.BatchJob) error
	Done() <-chan struct{}
	Progress() domain.BatchProgress
	Clear() error
}

// Simulator previews cron jobs via the remote API and executes promotions,
// writing every step to the execution log.
type Simulator struct {
	client     dispatch.Client
	dispatcher Dispatcher
	log        *ExecutionLog
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewSimulator(client dispatch.Client, dispatcher Dispatcher, log *ExecutionLog, logger *zap.Logger) (*Simulator, error) {
	if client == nil {
		return nil, fmt.Errorf("dispatch client is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if log == nil {
		return nil, fmt.Errorf("execution log is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Simulator{
		client:     client,
		dispatcher: dispatcher,
		log:        log,
		logger:     logger,
	}, nil
}

func (s *Simulator) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Preview asks the remote API what the named cron job would do. It performs
// no writes anywhere, not even to the execution log.
func (s *Simulator) Preview(ctx context.Context, cronName string) (*dispatch.CronDryRun, error) {
	if strings.TrimSpace(cronName) == "" {
		return nil, fmt.Errorf("%w: cron name is required", domain.ErrValidation)
	}

	preview, err := s.client.PreviewCron(ctx, cronName)
	if err != nil {
		s.metrics.IncDryRunPreview(cronName, "error")
		return nil, err
	}

	s.metrics.IncDryRunPreview(cronName, "ok")
	s.logger.Debug("cron dry run previewed",
		zap.String("cron", cronName),
		zap.Int("items", len(preview.Items)),
	)
	return preview, nil
}

// Log exposes the execution log for read and clear endpoints.
func (s *Simulator) Log() *ExecutionLog { return s.log }

// Promote executes one previewed record for real. The kind switch is
// exhaustive; an unknown kind is rejected before any side effect happens.
func (s *Simulator) Promote(ctx context.Context, promotion Promotion) (*PromotionResult, error) {
	switch promotion.Kind {
	case PromotionKindNotificationSend:
		return s.promoteNotificationSend(ctx, promotion)
	case PromotionKindCronManualRun:
		return s.promoteCronManualRun(ctx, promotion)
	default:
		return nil, fmt.Errorf("%w: unknown promotion kind %q", domain.ErrValidation, promotion.Kind)
	}
}

func (s *Simulator) promoteNotificationSend(ctx context.Context, promotion Promotion) (*PromotionResult, error) {
	if promotion.Target == nil {
		return nil, fmt.Errorf("%w: notification-send promotion requires a target", domain.ErrValidation)
	}
	if len(promotion.Channels) == 0 {
		return nil, fmt.Errorf("%w: notification-send promotion requires at least one channel", domain.ErrValidation)
	}

	target := *promotion.Target
	s.log.Append(ctx, promotion.CronName, domain.LogLevelInfo,
		fmt.Sprintf("dispatching %s on %d channel(s)", target.String(), len(promotion.Channels)))

	job := domain.BatchJob{
		Targets:  []domain.NotificationTarget{target},
		Channels: promotion.Channels,
	}
	if err := s.dispatcher.Start(ctx, job); err != nil {
		s.log.Append(ctx, promotion.CronName, domain.LogLevelError,
			fmt.Sprintf("dispatch rejected: %v", err))
		s.metrics.IncPromotion(string(promotion.Kind), "error")
		return nil, err
	}

	select {
	case <-s.dispatcher.Done():
	case <-ctx.Done():
		s.log.Append(ctx, promotion.CronName, domain.LogLevelError,
			fmt.Sprintf("gave up waiting for dispatch: %v", ctx.Err()))
		s.metrics.IncPromotion(string(promotion.Kind), "error")
		return nil, ctx.Err()
	}

	progress := s.dispatcher.Progress()
	for _, result := range progress.Results {
		if result.Success {
			message := fmt.Sprintf("%s sent for %s", result.Channel, result.Target.String())
			if result.Recipient != "" {
				message = fmt.Sprintf("%s sent to %s for %s", result.Channel, result.Recipient, result.Target.String())
			}
			s.log.Append(ctx, promotion.CronName, domain.LogLevelSuccess, message)
			continue
		}
		s.log.Append(ctx, promotion.CronName, domain.LogLevelError,
			fmt.Sprintf("%s failed for %s: %s", result.Channel, result.Target.String(), result.Error))
	}

	// Release the controller so the next promotion can start a fresh job.
	if err := s.dispatcher.Clear(); err != nil {
		s.logger.Warn("failed to clear dispatcher after promotion", zap.Error(err))
	}

	success := progress.Status == domain.JobStatusCompleted && progress.Failed == 0
	outcome := "ok"
	message := fmt.Sprintf("dispatched %s: %d sent, %d failed", target.String(), progress.Sent, progress.Failed)
	if !success {
		outcome = "error"
	}
	s.metrics.IncPromotion(string(promotion.Kind), outcome)

	return &PromotionResult{
		Kind:     promotion.Kind,
		Success:  success,
		Message:  message,
		Progress: &progress,
	}, nil
}

func (s *Simulator) promoteCronManualRun(ctx context.Context, promotion Promotion) (*PromotionResult, error) {
	if strings.TrimSpace(promotion.CronName) == "" {
		return nil, fmt.Errorf("%w: cron-manual-run promotion requires a cron name", domain.ErrValidation)
	}

	s.log.Append(ctx, promotion.CronName, domain.LogLevelInfo,
		fmt.Sprintf("running %s manually", promotion.CronName))

	outcome, err := s.client.RunCronManual(ctx, promotion.CronName, promotion.Payload)
	if err != nil {
		s.log.Append(ctx, promotion.CronName, domain.LogLevelError,
			fmt.Sprintf("manual run failed: %v", err))
		s.metrics.IncPromotion(string(promotion.Kind), "error")
		return nil, err
	}

	switch {
	case outcome.Skipped:
		s.log.Append(ctx, promotion.CronName, domain.LogLevelInfo,
			fmt.Sprintf("manual run skipped: %s", outcome.Message))
		s.metrics.IncPromotion(string(promotion.Kind), "skipped")
	case outcome.Success:
		s.log.Append(ctx, promotion.CronName, domain.LogLevelSuccess,
			fmt.Sprintf("manual run succeeded: %s", outcome.Message))
		s.metrics.IncPromotion(string(promotion.Kind), "ok")
	default:
		s.log.Append(ctx, promotion.CronName, domain.LogLevelError,
			fmt.Sprintf("manual run reported failure: %s", outcome.Message))
		s.metrics.IncPromotion(string(promotion.Kind), "error")
	}

	return &PromotionResult{
		Kind:    promotion.Kind,
		Success: outcome.Success,
		Skipped: outcome.Skipped,
		Message: outcome.Message,
		Details: outcome.Details,
	}, nil
}
