package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/dryrun"
)

const defaultLogLimit = 200

// DryRunService previews cron jobs and promotes previewed records.
type DryRunService interface {
	Preview(ctx context.Context, cronName string) (*dispatch.CronDryRun, error)
	Promote(ctx context.Context, promotion dryrun.Promotion) (*dryrun.PromotionResult, error)
	Log() *dryrun.ExecutionLog
}

type DryRunHandler struct {
	service DryRunService
}

func NewDryRunHandler(service DryRunService) (*DryRunHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("dry run service is required")
	}
	return &DryRunHandler{service: service}, nil
}

func RegisterDryRunRoutes(router fiber.Router, service DryRunService) error {
	h, err := NewDryRunHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/cron/log", h.GetLog)
	v1.Delete("/cron/log", h.ClearLog)
	v1.Get("/cron/:name/dry-run", h.Preview)
	v1.Post("/cron/:name/promote", h.Promote)

	return nil
}

type dryRunItemResponse struct {
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Channels    []string       `json:"channels"`
	Condition   string         `json:"condition"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type dryRunResponse struct {
	CronName   string               `json:"cronName"`
	ExecutedAt time.Time            `json:"executedAt"`
	DurationMs int64                `json:"durationMs"`
	Summary    string               `json:"summary"`
	Items      []dryRunItemResponse `json:"items"`
}

type promoteRequest struct {
	Kind       string         `json:"kind"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Channels   []string       `json:"channels"`
	Payload    map[string]any `json:"payload"`
}

type promoteResponse struct {
	Kind     string            `json:"kind"`
	Success  bool              `json:"success"`
	Skipped  bool              `json:"skipped,omitempty"`
	Message  string            `json:"message,omitempty"`
	Details  map[string]any    `json:"details,omitempty"`
	Progress *progressResponse `json:"progress,omitempty"`
}

type logEntryResponse struct {
	ID        string    `json:"id"`
	CronName  string    `json:"cronName,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *DryRunHandler) Preview(c *fiber.Ctx) error {
	cronName := strings.TrimSpace(c.Params("name"))

	preview, err := h.service.Preview(c.Context(), cronName)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]dryRunItemResponse, 0, len(preview.Items))
	for _, item := range preview.Items {
		channels := make([]string, 0, len(item.Channels))
		for _, channel := range item.Channels {
			channels = append(channels, channel.String())
		}
		items = append(items, dryRunItemResponse{
			EntityType:  item.EntityType,
			EntityID:    item.EntityID,
			Channels:    channels,
			Condition:   item.Condition.String(),
			Description: item.Description,
			Extra:       item.Extra,
		})
	}

	return c.Status(fiber.StatusOK).JSON(dryRunResponse{
		CronName:   preview.CronName,
		ExecutedAt: preview.ExecutedAt,
		DurationMs: preview.Duration.Milliseconds(),
		Summary:    preview.Summary,
		Items:      items,
	})
}

func (h *DryRunHandler) Promote(c *fiber.Ctx) error {
	var req promoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	promotion, err := requestToPromotion(strings.TrimSpace(c.Params("name")), req)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.service.Promote(c.Context(), promotion)
	if err != nil {
		return toHTTPError(err)
	}

	resp := promoteResponse{
		Kind:    string(result.Kind),
		Success: result.Success,
		Skipped: result.Skipped,
		Message: result.Message,
		Details: result.Details,
	}
	if result.Progress != nil {
		progress := toProgressResponse(*result.Progress)
		resp.Progress = &progress
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *DryRunHandler) GetLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit < 1 {
		return toHTTPError(fmt.Errorf("%w: limit must be >= 1", domain.ErrValidation))
	}

	entries := h.service.Log().Entries()
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	data := make([]logEntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, logEntryResponse{
			ID:        entry.ID,
			CronName:  entry.CronName,
			Level:     entry.Level.String(),
			Message:   entry.Message,
			Timestamp: entry.Timestamp,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *DryRunHandler) ClearLog(c *fiber.Ctx) error {
	if err := h.service.Log().Clear(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "cleared"})
}

func requestToPromotion(cronName string, req promoteRequest) (dryrun.Promotion, error) {
	kind := dryrun.PromotionKind(strings.TrimSpace(req.Kind))
	if !kind.IsValid() {
		return dryrun.Promotion{}, fmt.Errorf("%w: unknown promotion kind %q", domain.ErrValidation, req.Kind)
	}

	promotion := dryrun.Promotion{
		Kind:     kind,
		CronName: cronName,
		Payload:  req.Payload,
	}

	if kind == dryrun.PromotionKindNotificationSend {
		entityType, err := domain.ParseEntityTypeFromString(req.EntityType)
		if err != nil {
			return dryrun.Promotion{}, err
		}
		target := domain.NotificationTarget{
			EntityType: entityType,
			EntityID:   strings.TrimSpace(req.EntityID),
		}
		if err := target.Validate(); err != nil {
			return dryrun.Promotion{}, err
		}
		promotion.Target = &target

		channels := make([]domain.Channel, 0, len(req.Channels))
		for _, raw := range req.Channels {
			channel, err := domain.ParseChannelFromString(raw)
			if err != nil {
				return dryrun.Promotion{}, err
			}
			channels = append(channels, channel)
		}
		promotion.Channels = channels
	}

	return promotion, nil
}
