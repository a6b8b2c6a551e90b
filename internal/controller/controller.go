// Package controller owns the batch dispatch state machine. One controller
// instance runs at most one job at a time; targets are processed strictly in
// order, one network round-trip at a time, so cancellation stays exact and
// downstream senders never see bursts.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/events"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"github.com/kursadbilgin/notify-engine/internal/ratelimit"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Controller drives one BatchJob through the dispatch client.
//
// State machine: IDLE -> RUNNING -> {PAUSED <-> RUNNING} -> {COMPLETED |
// CANCELLED} -> (Clear) -> IDLE. Pause and cancel are cooperative: both are
// observed only at target boundaries, so an in-flight target always finishes.
type Controller struct {
	client    dispatch.Client
	limiter   ratelimit.RateLimiter
	runs      repository.RunRepository
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	job      *domain.BatchJob
	progress domain.BatchProgress
	done     chan struct{}
	subs     map[int]chan domain.BatchProgress
	nextSub  int
}

// New builds a controller. The rate limiter, run archive, and event
// publisher are optional; a nil logger falls back to a no-op logger.
func New(
	client dispatch.Client,
	limiter ratelimit.RateLimiter,
	runs repository.RunRepository,
	publisher events.Publisher,
	logger *zap.Logger,
) (*Controller, error) {
	if client == nil {
		return nil, fmt.Errorf("dispatch client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	closedDone := make(chan struct{})
	close(closedDone)

	c := &Controller{
		client:    client,
		limiter:   limiter,
		runs:      runs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		progress:  domain.IdleProgress(),
		done:      closedDone,
		subs:      make(map[int]chan domain.BatchProgress),
	}
	c.cond = sync.NewCond(&c.mu)

	return c, nil
}

func (c *Controller) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Start begins processing a job. It is rejected when another job is active
// or a finished job has not been cleared yet, and when the job is invalid
// (no targets, no channels). The context should outlive the request that
// triggered the start; it governs the whole run.
func (c *Controller) Start(ctx context.Context, job domain.BatchJob) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := job.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	switch c.progress.Status {
	case domain.JobStatusRunning, domain.JobStatusPaused:
		c.mu.Unlock()
		return fmt.Errorf("%w: a batch job is already active", domain.ErrConflict)
	case domain.JobStatusCompleted, domain.JobStatusCancelled:
		c.mu.Unlock()
		return fmt.Errorf("%w: previous job must be cleared before starting a new one", domain.ErrConflict)
	}

	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}

	// Own the slices so later caller mutations cannot reach the run loop.
	targets := make([]domain.NotificationTarget, len(job.Targets))
	copy(targets, job.Targets)
	channels := make([]domain.Channel, len(job.Channels))
	copy(channels, job.Channels)
	job.Targets = targets
	job.Channels = channels

	startedAt := c.now().UTC()
	c.job = &job
	c.progress = domain.BatchProgress{
		JobID:     job.ID,
		Status:    domain.JobStatusRunning,
		Total:     len(job.Targets),
		Results:   make([]domain.DispatchResult, 0, len(job.Targets)*len(job.Channels)),
		StartedAt: &startedAt,
	}
	done := make(chan struct{})
	c.done = done
	snapshot := c.progress.Clone()
	c.mu.Unlock()

	c.logger.Info("batch job started",
		zap.String("jobId", job.ID),
		zap.Int("targets", len(job.Targets)),
		zap.Int("channels", len(job.Channels)),
	)
	c.notify(snapshot)

	go c.run(observability.WithJobID(ctx, job.ID), job, done)

	return nil
}

// Pause suspends processing before the next target. The in-flight target,
// if any, is allowed to finish.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.progress.Status != domain.JobStatusRunning {
		status := c.progress.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: can only pause a running job (status %s)", domain.ErrConflict, status)
	}
	c.progress.Status = domain.JobStatusPaused
	snapshot := c.progress.Clone()
	c.mu.Unlock()

	c.logger.Info("batch job paused", zap.String("jobId", snapshot.JobID))
	c.notify(snapshot)
	return nil
}

// Resume continues a paused job at the next unprocessed target.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.progress.Status != domain.JobStatusPaused {
		status := c.progress.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: can only resume a paused job (status %s)", domain.ErrConflict, status)
	}
	c.progress.Status = domain.JobStatusRunning
	snapshot := c.progress.Clone()
	c.cond.Broadcast()
	c.mu.Unlock()

	c.logger.Info("batch job resumed", zap.String("jobId", snapshot.JobID))
	c.notify(snapshot)
	return nil
}

// Cancel stops a running or paused job at the next target boundary.
// Already-recorded results are preserved. A cancelled job is terminal.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.progress.Status != domain.JobStatusRunning && c.progress.Status != domain.JobStatusPaused {
		status := c.progress.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: can only cancel a running or paused job (status %s)", domain.ErrConflict, status)
	}
	c.progress.Status = domain.JobStatusCancelled
	snapshot := c.progress.Clone()
	c.cond.Broadcast()
	c.mu.Unlock()

	c.logger.Info("batch job cancelled", zap.String("jobId", snapshot.JobID))
	c.notify(snapshot)
	return nil
}

// Clear resets a finished job back to the idle state. Calling it while a
// job is active, or before the run loop has fully stopped, is rejected.
func (c *Controller) Clear() error {
	c.mu.Lock()
	if !c.progress.Status.IsTerminal() {
		status := c.progress.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: only a finished job can be cleared (status %s)", domain.ErrConflict, status)
	}
	select {
	case <-c.done:
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: job is still finishing", domain.ErrConflict)
	}
	c.job = nil
	c.progress = domain.IdleProgress()
	snapshot := c.progress.Clone()
	c.mu.Unlock()

	c.notify(snapshot)
	return nil
}

// Progress returns a read-only snapshot of the current job execution.
func (c *Controller) Progress() domain.BatchProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Clone()
}

// Done returns a channel closed when the most recently started run loop has
// fully stopped. Before any job has started it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Subscribe registers a progress observer. Snapshots are dropped rather
// than blocking the run loop when the subscriber falls behind. The returned
// function unregisters the subscriber.
func (c *Controller) Subscribe() (<-chan domain.BatchProgress, func()) {
	ch := make(chan domain.BatchProgress, subscriberBuffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, unsubscribe
}

func (c *Controller) run(ctx context.Context, job domain.BatchJob, done chan struct{}) {
	logger := observability.WithContextLogger(c.logger, ctx)

	for i := range job.Targets {
		target := job.Targets[i]

		c.mu.Lock()
		for c.progress.Status == domain.JobStatusPaused {
			c.cond.Wait()
		}
		if ctx.Err() != nil {
			c.progress.Status = domain.JobStatusCancelled
		}
		if c.progress.Status == domain.JobStatusCancelled {
			c.mu.Unlock()
			break
		}
		currentTarget := target
		c.progress.Current = i + 1
		c.progress.CurrentTarget = &currentTarget
		c.mu.Unlock()

		results := c.dispatchTarget(ctx, logger, target, job.Channels)

		c.mu.Lock()
		c.progress.Results = append(c.progress.Results, results...)
		for _, result := range results {
			if result.Success {
				c.progress.Sent++
			} else {
				c.progress.Failed++
			}
		}
		snapshot := c.progress.Clone()
		c.mu.Unlock()

		c.notify(snapshot)
		c.publishProgress(ctx, snapshot, &target, false)
	}

	c.finish(ctx, logger, done)
}

func (c *Controller) dispatchTarget(
	ctx context.Context,
	logger *zap.Logger,
	target domain.NotificationTarget,
	channels []domain.Channel,
) []domain.DispatchResult {
	for _, channel := range channels {
		if c.limiter == nil {
			break
		}
		if err := c.limiter.Wait(ctx, channel.String()); err != nil {
			logger.Warn("rate limiter wait failed, dispatching anyway",
				zap.String("channel", channel.String()),
				zap.Error(err),
			)
			break
		}
	}

	sendStart := c.now()
	outcome, err := c.client.SendManual(ctx, []domain.NotificationTarget{target}, channels)
	c.metrics.ObserveDispatchDuration(target.EntityType.String(), c.now().Sub(sendStart))

	if err != nil {
		logger.Warn("target dispatch failed",
			zap.String("target", target.String()),
			zap.Bool("transient", dispatch.IsTransient(err)),
			zap.Error(err),
		)
		return c.failAllChannels(target, channels, err.Error())
	}
	if outcome == nil || len(outcome.Results) == 0 {
		logger.Warn("remote api returned no results for target", zap.String("target", target.String()))
		return c.failAllChannels(target, channels, "remote api returned no results")
	}

	succeeded := 0
	for _, result := range outcome.Results {
		c.metrics.IncChannelResult(result.Channel.String(), result.Success)
		if result.Success {
			succeeded++
		}
	}

	outcomeLabel := "sent"
	switch {
	case succeeded == 0:
		outcomeLabel = "failed"
	case succeeded < len(outcome.Results):
		outcomeLabel = "partial"
	}
	c.metrics.IncTargetProcessed(target.EntityType.String(), outcomeLabel)

	return outcome.Results
}

// failAllChannels converts a client-level failure into one failed result per
// requested channel, so no (target, channel) pair is ever left unresolved.
func (c *Controller) failAllChannels(
	target domain.NotificationTarget,
	channels []domain.Channel,
	message string,
) []domain.DispatchResult {
	results := make([]domain.DispatchResult, 0, len(channels))
	for _, channel := range channels {
		results = append(results, domain.DispatchResult{
			Target:  target,
			Channel: channel,
			Success: false,
			Error:   message,
		})
		c.metrics.IncChannelResult(channel.String(), false)
	}
	c.metrics.IncTargetProcessed(target.EntityType.String(), "failed")
	return results
}

func (c *Controller) finish(ctx context.Context, logger *zap.Logger, done chan struct{}) {
	c.mu.Lock()
	if c.progress.Status != domain.JobStatusCancelled {
		c.progress.Status = domain.JobStatusCompleted
	}
	finishedAt := c.now().UTC()
	c.progress.FinishedAt = &finishedAt
	c.progress.CurrentTarget = nil
	snapshot := c.progress.Clone()
	c.mu.Unlock()

	logger.Info("batch job finished",
		zap.String("status", snapshot.Status.String()),
		zap.Int("sent", snapshot.Sent),
		zap.Int("failed", snapshot.Failed),
		zap.Int("processed", len(snapshot.Results)),
	)
	c.metrics.IncBatchFinished(snapshot.Status.String())

	c.notify(snapshot)
	c.publishProgress(ctx, snapshot, nil, true)
	c.archive(ctx, logger, snapshot)

	close(done)
}

func (c *Controller) archive(ctx context.Context, logger *zap.Logger, snapshot domain.BatchProgress) {
	if c.runs == nil {
		return
	}

	run := &domain.Run{
		ID:          uuid.NewString(),
		JobID:       snapshot.JobID,
		Status:      snapshot.Status,
		TotalCount:  snapshot.Total,
		SentCount:   snapshot.Sent,
		FailedCount: snapshot.Failed,
		Results:     snapshot.Results,
	}
	if snapshot.StartedAt != nil {
		run.StartedAt = *snapshot.StartedAt
	}
	if snapshot.FinishedAt != nil {
		run.FinishedAt = *snapshot.FinishedAt
	}

	if err := c.runs.Create(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to archive batch run", zap.Error(err))
	}
}

func (c *Controller) publishProgress(
	ctx context.Context,
	snapshot domain.BatchProgress,
	target *domain.NotificationTarget,
	terminal bool,
) {
	if c.publisher == nil {
		return
	}

	event := events.ProgressEvent{
		JobID:      snapshot.JobID,
		Status:     snapshot.Status,
		Total:      snapshot.Total,
		Current:    snapshot.Current,
		Sent:       snapshot.Sent,
		Failed:     snapshot.Failed,
		Terminal:   terminal,
		OccurredAt: c.now().UTC(),
	}
	if target != nil {
		eventTarget := *target
		event.Target = &eventTarget
	}

	if err := c.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Warn("failed to publish progress event",
			zap.String("jobId", snapshot.JobID),
			zap.Error(err),
		)
	}
}

func (c *Controller) notify(snapshot domain.BatchProgress) {
	c.mu.Lock()
	subs := make([]chan domain.BatchProgress, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- snapshot:
		default:
		}
	}
}
