package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/events"
	"github.com/kursadbilgin/notify-engine/internal/repository"
)

// fakeClient implements dispatch.Client for controller tests. SendManual is
// configurable per call; when started/proceed are set, each call announces
// the target it received and then blocks until the test releases it.
type fakeClient struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	proceed chan struct{}

	sendFn func(target domain.NotificationTarget, channels []domain.Channel) (*dispatch.SendOutcome, error)
}

func (f *fakeClient) SendManual(ctx context.Context, targets []domain.NotificationTarget, channels []domain.Channel) (*dispatch.SendOutcome, error) {
	if len(targets) != 1 {
		return nil, fmt.Errorf("expected exactly one target per call, got %d", len(targets))
	}
	target := targets[0]

	f.mu.Lock()
	f.calls = append(f.calls, target.EntityID)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- target.EntityID
	}
	if f.proceed != nil {
		<-f.proceed
	}

	if f.sendFn != nil {
		return f.sendFn(target, channels)
	}
	return successOutcome(target, channels), nil
}

func (f *fakeClient) PreviewCron(ctx context.Context, cronName string) (*dispatch.CronDryRun, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) RunCronManual(ctx context.Context, cronName string, payload map[string]any) (*dispatch.ManualRunOutcome, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) QueueStats(ctx context.Context) (*dispatch.QueueStats, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) InvoiceQueue(ctx context.Context) ([]dispatch.InvoiceQueueEntry, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) ContractQueue(ctx context.Context) ([]dispatch.ContractQueueEntry, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func successOutcome(target domain.NotificationTarget, channels []domain.Channel) *dispatch.SendOutcome {
	outcome := &dispatch.SendOutcome{}
	for _, channel := range channels {
		outcome.Results = append(outcome.Results, domain.DispatchResult{
			Target:    target,
			Channel:   channel,
			Success:   true,
			Recipient: "ops@example.com",
		})
		outcome.Sent++
	}
	return outcome
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs []*domain.Run
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeRunRepo) List(ctx context.Context, params repository.ListRunsParams) ([]domain.Run, int64, error) {
	return nil, 0, errors.New("not implemented")
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.ProgressEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event events.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func invoiceTargets(n int) []domain.NotificationTarget {
	targets := make([]domain.NotificationTarget, 0, n)
	for i := 1; i <= n; i++ {
		targets = append(targets, domain.NotificationTarget{
			EntityType: domain.EntityInvoice,
			EntityID:   fmt.Sprintf("inv-%d", i),
		})
	}
	return targets
}

func bothChannels() []domain.Channel {
	return []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}
}

func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the run loop to finish")
	}
}

func recvStarted(t *testing.T, started chan string) string {
	t.Helper()
	select {
	case id := <-started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a dispatch call")
		return ""
	}
}

func TestController_StartValidation(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeClient{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Start(context.Background(), domain.BatchJob{Channels: bothChannels()})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Start() with no targets: error = %v, want ErrValidation", err)
	}

	err = c.Start(context.Background(), domain.BatchJob{Targets: invoiceTargets(1)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Start() with no channels: error = %v, want ErrValidation", err)
	}

	if got := c.Progress().Status; got != domain.JobStatusIdle {
		t.Fatalf("status after rejected starts = %s, want IDLE", got)
	}
}

func TestController_CompletesSequentiallyAndRecordsFailures(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		sendFn: func(target domain.NotificationTarget, channels []domain.Channel) (*dispatch.SendOutcome, error) {
			if target.EntityID == "inv-3" {
				return nil, errors.New("connection refused")
			}
			return successOutcome(target, channels), nil
		},
	}
	runs := &fakeRunRepo{}
	publisher := &fakePublisher{}

	c, err := New(client, nil, runs, publisher, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	job := domain.BatchJob{Targets: invoiceTargets(5), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, c)

	progress := c.Progress()
	if progress.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", progress.Status)
	}
	if len(progress.Results) != 10 {
		t.Fatalf("results = %d, want 10 (5 targets x 2 channels)", len(progress.Results))
	}
	if progress.Sent != 8 || progress.Failed != 2 {
		t.Fatalf("sent/failed = %d/%d, want 8/2", progress.Sent, progress.Failed)
	}
	if progress.FinishedAt == nil || progress.StartedAt == nil {
		t.Fatal("StartedAt and FinishedAt must be set on a completed job")
	}
	if progress.CurrentTarget != nil {
		t.Fatal("CurrentTarget must be nil once the job is terminal")
	}

	wantOrder := []string{"inv-1", "inv-2", "inv-3", "inv-4", "inv-5"}
	calls := client.callLog()
	if len(calls) != len(wantOrder) {
		t.Fatalf("dispatch calls = %v, want %v", calls, wantOrder)
	}
	for i := range wantOrder {
		if calls[i] != wantOrder[i] {
			t.Fatalf("dispatch order = %v, want %v", calls, wantOrder)
		}
	}

	// The failed target still produced one result per channel.
	failed := 0
	for _, result := range progress.Results {
		if result.Target.EntityID != "inv-3" {
			continue
		}
		if result.Success {
			t.Fatalf("result for inv-3/%s unexpectedly successful", result.Channel)
		}
		if result.Error != "connection refused" {
			t.Fatalf("result error = %q, want the client error message", result.Error)
		}
		failed++
	}
	if failed != 2 {
		t.Fatalf("synthesized results for inv-3 = %d, want 2", failed)
	}

	runs.mu.Lock()
	defer runs.mu.Unlock()
	if len(runs.runs) != 1 {
		t.Fatalf("archived runs = %d, want 1", len(runs.runs))
	}
	run := runs.runs[0]
	if run.Status != domain.JobStatusCompleted || run.SentCount != 8 || run.FailedCount != 2 || run.TotalCount != 5 {
		t.Fatalf("archived run = %+v, want completed 8/2 of 5", run)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != 6 {
		t.Fatalf("published events = %d, want 6 (5 progress + 1 terminal)", len(publisher.events))
	}
	last := publisher.events[len(publisher.events)-1]
	if !last.Terminal || last.Status != domain.JobStatusCompleted {
		t.Fatalf("last event = %+v, want terminal COMPLETED", last)
	}
}

func TestController_PauseResume(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		started: make(chan string, 3),
		proceed: make(chan struct{}),
	}
	c, err := New(client, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	job := domain.BatchJob{Targets: invoiceTargets(3), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := recvStarted(t, client.started); got != "inv-1" {
		t.Fatalf("first dispatch = %s, want inv-1", got)
	}

	// Pause while inv-1 is in flight; it must finish and then the loop
	// must stop before inv-2.
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := c.Pause(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Pause() on a paused job: error = %v, want ErrConflict", err)
	}
	client.proceed <- struct{}{}

	deadline := time.Now().Add(5 * time.Second)
	for {
		progress := c.Progress()
		if progress.Status == domain.JobStatusPaused && len(progress.Results) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress never settled while paused: %+v", progress)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case id := <-client.started:
		t.Fatalf("dispatched %s while paused", id)
	case <-time.After(100 * time.Millisecond):
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if err := c.Resume(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Resume() on a running job: error = %v, want ErrConflict", err)
	}

	for _, want := range []string{"inv-2", "inv-3"} {
		if got := recvStarted(t, client.started); got != want {
			t.Fatalf("dispatch after resume = %s, want %s", got, want)
		}
		client.proceed <- struct{}{}
	}
	waitDone(t, c)

	progress := c.Progress()
	if progress.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", progress.Status)
	}
	if len(progress.Results) != 6 {
		t.Fatalf("results = %d, want 6; no target may run twice across a pause", len(progress.Results))
	}
}

func TestController_CancelStopsAtTargetBoundary(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		started: make(chan string, 4),
		proceed: make(chan struct{}),
	}
	c, err := New(client, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	job := domain.BatchJob{Targets: invoiceTargets(4), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	recvStarted(t, client.started)
	client.proceed <- struct{}{}
	recvStarted(t, client.started)

	// Cancel while inv-2 is in flight: it finishes, inv-3 and inv-4 never
	// start.
	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	client.proceed <- struct{}{}
	waitDone(t, c)

	progress := c.Progress()
	if progress.Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", progress.Status)
	}
	if len(progress.Results) != 4 {
		t.Fatalf("results = %d, want 4 (2 finished targets x 2 channels)", len(progress.Results))
	}
	if calls := client.callLog(); len(calls) != 2 {
		t.Fatalf("dispatch calls = %v, want exactly inv-1 and inv-2", calls)
	}

	// Terminal state rejects every lifecycle transition except clear.
	if err := c.Cancel(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Cancel() on a cancelled job: error = %v, want ErrConflict", err)
	}
	if err := c.Pause(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Pause() on a cancelled job: error = %v, want ErrConflict", err)
	}
	if err := c.Resume(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Resume() on a cancelled job: error = %v, want ErrConflict", err)
	}
}

func TestController_StartRejectedWhileActiveOrUncleared(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		started: make(chan string, 1),
		proceed: make(chan struct{}),
	}
	c, err := New(client, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	job := domain.BatchJob{Targets: invoiceTargets(1), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	recvStarted(t, client.started)

	if err := c.Start(context.Background(), job); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Start() while running: error = %v, want ErrConflict", err)
	}

	client.proceed <- struct{}{}
	waitDone(t, c)

	if err := c.Start(context.Background(), job); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Start() after completion without Clear(): error = %v, want ErrConflict", err)
	}
}

func TestController_ClearResetsToIdle(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	c, err := New(client, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.Clear(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Clear() while idle: error = %v, want ErrConflict", err)
	}

	job := domain.BatchJob{Targets: invoiceTargets(2), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, c)

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	progress := c.Progress()
	if progress.Status != domain.JobStatusIdle {
		t.Fatalf("status after Clear() = %s, want IDLE", progress.Status)
	}
	if progress.JobID != "" || len(progress.Results) != 0 || progress.StartedAt != nil {
		t.Fatalf("Clear() must restore the idle shape, got %+v", progress)
	}

	// A fresh job starts from the first target again.
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() after Clear() error = %v", err)
	}
	waitDone(t, c)

	if got := c.Progress(); got.Status != domain.JobStatusCompleted || len(got.Results) != 4 {
		t.Fatalf("second run progress = %+v, want COMPLETED with 4 results", got)
	}
	if calls := client.callLog(); len(calls) != 4 {
		t.Fatalf("dispatch calls across both runs = %v, want 4", calls)
	}
}

func TestController_SubscribeObservesTerminalSnapshot(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeClient{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	job := domain.BatchJob{Targets: invoiceTargets(2), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, c)

	var last domain.BatchProgress
	seen := 0
	for {
		select {
		case snapshot := <-updates:
			last = snapshot
			seen++
			continue
		default:
		}
		break
	}

	if seen == 0 {
		t.Fatal("subscriber received no snapshots")
	}
	if !last.Status.IsTerminal() {
		t.Fatalf("last observed status = %s, want terminal", last.Status)
	}
	if last.Sent != 4 {
		t.Fatalf("last observed sent = %d, want 4", last.Sent)
	}
}

func TestController_ProgressSnapshotsAreIsolated(t *testing.T) {
	t.Parallel()

	c, err := New(&fakeClient{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	job := domain.BatchJob{Targets: invoiceTargets(1), Channels: bothChannels()}
	if err := c.Start(context.Background(), job); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, c)

	first := c.Progress()
	first.Results[0].Success = false
	first.Sent = 99

	second := c.Progress()
	if !second.Results[0].Success || second.Sent != 2 {
		t.Fatal("mutating a snapshot leaked into controller state")
	}
}
