package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/transport"
	"go.uber.org/zap"
)

type stubQueueClient struct {
	stats     *dispatch.QueueStats
	invoices  []dispatch.InvoiceQueueEntry
	contracts []dispatch.ContractQueueEntry
	err       error
}

func (s *stubQueueClient) SendManual(ctx context.Context, targets []domain.NotificationTarget, channels []domain.Channel) (*dispatch.SendOutcome, error) {
	return nil, errors.New("not implemented")
}

func (s *stubQueueClient) PreviewCron(ctx context.Context, cronName string) (*dispatch.CronDryRun, error) {
	return nil, errors.New("not implemented")
}

func (s *stubQueueClient) RunCronManual(ctx context.Context, cronName string, payload map[string]any) (*dispatch.ManualRunOutcome, error) {
	return nil, errors.New("not implemented")
}

func (s *stubQueueClient) QueueStats(ctx context.Context) (*dispatch.QueueStats, error) {
	return s.stats, s.err
}

func (s *stubQueueClient) InvoiceQueue(ctx context.Context) ([]dispatch.InvoiceQueueEntry, error) {
	return s.invoices, s.err
}

func (s *stubQueueClient) ContractQueue(ctx context.Context) ([]dispatch.ContractQueueEntry, error) {
	return s.contracts, s.err
}

func newQueueTestApp(t *testing.T, client dispatch.Client) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterQueueRoutes(app, client, []int{3, 5, 10}); err != nil {
		t.Fatalf("RegisterQueueRoutes() error = %v", err)
	}

	return app
}

func TestQueueHandler_GetStats(t *testing.T) {
	t.Parallel()

	app := newQueueTestApp(t, &stubQueueClient{
		stats: &dispatch.QueueStats{Invoices: 12, Contracts: 4},
	})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/queues/stats", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var parsed queueStatsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Invoices != 12 || parsed.Contracts != 4 {
		t.Fatalf("stats = %+v, want 12/4", parsed)
	}
}

func TestQueueHandler_GetInvoicesEnriched(t *testing.T) {
	t.Parallel()

	app := newQueueTestApp(t, &stubQueueClient{
		invoices: []dispatch.InvoiceQueueEntry{
			{
				InvoiceID:      "inv-1",
				CustomerName:   "Acme",
				OverdueDays:    4,
				SentConditions: []domain.Condition{domain.OverdueCondition(5)},
			},
			{
				InvoiceID:    "inv-2",
				CustomerName: "Globex",
				OverdueDays:  0,
			},
		},
	})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/queues/invoices", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data []invoiceQueueResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 2 {
		t.Fatalf("data = %d entries, want 2", len(parsed.Data))
	}

	first := parsed.Data[0]
	if first.Condition != "overdue-5" || !first.Duplicate {
		t.Fatalf("first entry = %+v, want overdue-5 flagged as duplicate", first)
	}
	second := parsed.Data[1]
	if second.Condition != "due" || second.Duplicate {
		t.Fatalf("second entry = %+v, want due without duplicate flag", second)
	}
}

func TestQueueHandler_GetContractsEnriched(t *testing.T) {
	t.Parallel()

	app := newQueueTestApp(t, &stubQueueClient{
		contracts: []dispatch.ContractQueueEntry{
			{
				ContractID:     "ct-1",
				CustomerName:   "Initech",
				Milestone:      domain.MilestonePostOne,
				SentConditions: []domain.Condition{domain.ConditionPreExpiry},
			},
		},
	})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/queues/contracts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data []contractQueueResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 1 {
		t.Fatalf("data = %d entries, want 1", len(parsed.Data))
	}
	entry := parsed.Data[0]
	if entry.Condition != "post-1" || entry.Duplicate {
		t.Fatalf("entry = %+v, want post-1 without duplicate flag", entry)
	}
}

func TestQueueHandler_RemoteErrorPassesThrough(t *testing.T) {
	t.Parallel()

	app := newQueueTestApp(t, &stubQueueClient{
		err: &dispatch.ClientError{StatusCode: http.StatusBadGateway, Message: "upstream down", Transient: true},
	})

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/queues/stats", "")
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for an unclassified remote error", resp.StatusCode)
	}
}
