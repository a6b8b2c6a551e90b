package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-engine/internal/classify"
	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// ClassifyHandler exposes the pure condition classifier and duplicate guard
// so callers can resolve a condition without dispatching anything.
type ClassifyHandler struct {
	thresholds []int
}

func NewClassifyHandler(thresholds []int) (*ClassifyHandler, error) {
	normalized, err := classify.NormalizeThresholds(thresholds)
	if err != nil {
		return nil, err
	}
	return &ClassifyHandler{thresholds: normalized}, nil
}

func RegisterClassifyRoutes(router fiber.Router, thresholds []int) error {
	h, err := NewClassifyHandler(thresholds)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/classify/invoice", h.ClassifyInvoice)
	v1.Post("/classify/contract", h.ClassifyContract)

	return nil
}

type classifyInvoiceRequest struct {
	OverdueDays    *int     `json:"overdueDays"`
	SentConditions []string `json:"sentConditions"`
}

type classifyContractRequest struct {
	Milestone      string   `json:"milestone"`
	SentConditions []string `json:"sentConditions"`
}

type classifyResponse struct {
	Condition string `json:"condition"`
	Label     string `json:"label"`
	Duplicate bool   `json:"duplicate"`
}

func (h *ClassifyHandler) ClassifyInvoice(c *fiber.Ctx) error {
	var req classifyInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OverdueDays == nil {
		return toHTTPError(fmt.Errorf("%w: overdueDays is required", domain.ErrValidation))
	}

	condition, err := classify.Invoice(*req.OverdueDays, h.thresholds)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toClassifyResponse(condition, req.SentConditions))
}

func (h *ClassifyHandler) ClassifyContract(c *fiber.Ctx) error {
	var req classifyContractRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	milestone, err := domain.ParseMilestoneFromString(req.Milestone)
	if err != nil {
		return toHTTPError(err)
	}

	condition, err := classify.Contract(milestone)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toClassifyResponse(condition, req.SentConditions))
}

func toClassifyResponse(condition domain.Condition, sentConditions []string) classifyResponse {
	history := make([]domain.Condition, 0, len(sentConditions))
	for _, sent := range sentConditions {
		history = append(history, domain.Condition(sent))
	}

	return classifyResponse{
		Condition: condition.String(),
		Label:     classify.Label(condition),
		Duplicate: classify.HasMatchingCondition(history, condition),
	}
}
