package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-engine/internal/classify"
	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// QueueHandler proxies the remote pending-notification queues, enriching
// each entry with its classified condition and duplicate flag so callers
// see exactly what a dispatch would do.
type QueueHandler struct {
	client     dispatch.Client
	thresholds []int
}

func NewQueueHandler(client dispatch.Client, thresholds []int) (*QueueHandler, error) {
	if client == nil {
		return nil, fmt.Errorf("dispatch client is required")
	}
	normalized, err := classify.NormalizeThresholds(thresholds)
	if err != nil {
		return nil, err
	}
	return &QueueHandler{client: client, thresholds: normalized}, nil
}

func RegisterQueueRoutes(router fiber.Router, client dispatch.Client, thresholds []int) error {
	h, err := NewQueueHandler(client, thresholds)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/queues/stats", h.GetStats)
	v1.Get("/queues/invoices", h.GetInvoices)
	v1.Get("/queues/contracts", h.GetContracts)

	return nil
}

type queueStatsResponse struct {
	Invoices  int `json:"invoices"`
	Contracts int `json:"contracts"`
}

type invoiceQueueResponse struct {
	InvoiceID      string   `json:"invoiceId"`
	CustomerName   string   `json:"customerName"`
	OverdueDays    int      `json:"overdueDays"`
	Condition      string   `json:"condition"`
	Label          string   `json:"label"`
	Duplicate      bool     `json:"duplicate"`
	SentConditions []string `json:"sentConditions"`
}

type contractQueueResponse struct {
	ContractID     string   `json:"contractId"`
	CustomerName   string   `json:"customerName"`
	Milestone      string   `json:"milestone"`
	Condition      string   `json:"condition"`
	Label          string   `json:"label"`
	Duplicate      bool     `json:"duplicate"`
	SentConditions []string `json:"sentConditions"`
}

func (h *QueueHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.client.QueueStats(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(queueStatsResponse{
		Invoices:  stats.Invoices,
		Contracts: stats.Contracts,
	})
}

func (h *QueueHandler) GetInvoices(c *fiber.Ctx) error {
	entries, err := h.client.InvoiceQueue(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]invoiceQueueResponse, 0, len(entries))
	for _, entry := range entries {
		condition, err := classify.Invoice(entry.OverdueDays, h.thresholds)
		if err != nil {
			return toHTTPError(err)
		}
		data = append(data, invoiceQueueResponse{
			InvoiceID:      entry.InvoiceID,
			CustomerName:   entry.CustomerName,
			OverdueDays:    entry.OverdueDays,
			Condition:      condition.String(),
			Label:          classify.Label(condition),
			Duplicate:      classify.HasMatchingCondition(entry.SentConditions, condition),
			SentConditions: conditionStrings(entry.SentConditions),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *QueueHandler) GetContracts(c *fiber.Ctx) error {
	entries, err := h.client.ContractQueue(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]contractQueueResponse, 0, len(entries))
	for _, entry := range entries {
		condition, err := classify.Contract(entry.Milestone)
		if err != nil {
			return toHTTPError(err)
		}
		data = append(data, contractQueueResponse{
			ContractID:     entry.ContractID,
			CustomerName:   entry.CustomerName,
			Milestone:      entry.Milestone.String(),
			Condition:      condition.String(),
			Label:          classify.Label(condition),
			Duplicate:      classify.HasMatchingCondition(entry.SentConditions, condition),
			SentConditions: conditionStrings(entry.SentConditions),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func conditionStrings(conditions []domain.Condition) []string {
	out := make([]string, 0, len(conditions))
	for _, condition := range conditions {
		out = append(out, condition.String())
	}
	return out
}
