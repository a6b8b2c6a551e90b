package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

// BatchController is the slice of the dispatch controller the HTTP layer
// consumes.
type BatchController interface {
	Start(ctx context.Context, job domain.BatchJob) error
	Pause() error
	Resume() error
	Cancel() error
	Clear() error
	Progress() domain.BatchProgress
}

type EngineHandler struct {
	controller BatchController
	runs       repository.RunRepository
}

func NewEngineHandler(controller BatchController, runs repository.RunRepository) (*EngineHandler, error) {
	if controller == nil {
		return nil, fmt.Errorf("batch controller is required")
	}
	if runs == nil {
		return nil, fmt.Errorf("run repository is required")
	}
	return &EngineHandler{controller: controller, runs: runs}, nil
}

func RegisterEngineRoutes(router fiber.Router, controller BatchController, runs repository.RunRepository) error {
	h, err := NewEngineHandler(controller, runs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.StartBatch)
	v1.Get("/batches/current", h.GetProgress)
	v1.Post("/batches/current/pause", h.PauseBatch)
	v1.Post("/batches/current/resume", h.ResumeBatch)
	v1.Post("/batches/current/cancel", h.CancelBatch)
	v1.Post("/batches/current/clear", h.ClearBatch)
	v1.Get("/runs", h.ListRuns)
	v1.Get("/runs/:id", h.GetRun)

	return nil
}

type startBatchRequest struct {
	Targets  []targetRequest `json:"targets"`
	Channels []string        `json:"channels"`
}

type targetRequest struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

type targetResponse struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

type dispatchResultResponse struct {
	Target    targetResponse `json:"target"`
	Channel   string         `json:"channel"`
	Success   bool           `json:"success"`
	Recipient string         `json:"recipient,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type progressResponse struct {
	JobID         string                   `json:"jobId,omitempty"`
	Status        string                   `json:"status"`
	Total         int                      `json:"total"`
	Current       int                      `json:"current"`
	CurrentTarget *targetResponse          `json:"currentTarget,omitempty"`
	Sent          int                      `json:"sent"`
	Failed        int                      `json:"failed"`
	Results       []dispatchResultResponse `json:"results"`
	StartedAt     *time.Time               `json:"startedAt,omitempty"`
	FinishedAt    *time.Time               `json:"finishedAt,omitempty"`
}

type runResponse struct {
	ID          string                   `json:"id"`
	JobID       string                   `json:"jobId"`
	Status      string                   `json:"status"`
	TotalCount  int                      `json:"totalCount"`
	SentCount   int                      `json:"sentCount"`
	FailedCount int                      `json:"failedCount"`
	Results     []dispatchResultResponse `json:"results"`
	StartedAt   time.Time                `json:"startedAt"`
	FinishedAt  time.Time                `json:"finishedAt"`
	CreatedAt   time.Time                `json:"createdAt"`
}

type listRunsResponse struct {
	Data []runResponse `json:"data"`
	Meta listMeta      `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *EngineHandler) StartBatch(c *fiber.Ctx) error {
	var req startBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	job, err := requestToBatchJob(req)
	if err != nil {
		return toHTTPError(err)
	}

	// The run loop outlives this request, so it must not inherit the
	// request context.
	if err := h.controller.Start(context.Background(), job); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toProgressResponse(h.controller.Progress()))
}

func (h *EngineHandler) GetProgress(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(toProgressResponse(h.controller.Progress()))
}

func (h *EngineHandler) PauseBatch(c *fiber.Ctx) error {
	if err := h.controller.Pause(); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProgressResponse(h.controller.Progress()))
}

func (h *EngineHandler) ResumeBatch(c *fiber.Ctx) error {
	if err := h.controller.Resume(); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProgressResponse(h.controller.Progress()))
}

func (h *EngineHandler) CancelBatch(c *fiber.Ctx) error {
	if err := h.controller.Cancel(); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProgressResponse(h.controller.Progress()))
}

func (h *EngineHandler) ClearBatch(c *fiber.Ctx) error {
	if err := h.controller.Clear(); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProgressResponse(h.controller.Progress()))
}

func (h *EngineHandler) ListRuns(c *fiber.Ctx) error {
	params := repository.ListRunsParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if params.Page < 1 {
		return toHTTPError(fmt.Errorf("%w: page must be >= 1", domain.ErrValidation))
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return toHTTPError(fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize))
	}

	runs, total, err := h.runs.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]runResponse, 0, len(runs))
	for i := range runs {
		data = append(data, toRunResponse(&runs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listRunsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *EngineHandler) GetRun(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	run, err := h.runs.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRunResponse(run))
}

func requestToBatchJob(req startBatchRequest) (domain.BatchJob, error) {
	if len(req.Targets) == 0 {
		return domain.BatchJob{}, fmt.Errorf("%w: targets is required", domain.ErrValidation)
	}
	if len(req.Channels) == 0 {
		return domain.BatchJob{}, fmt.Errorf("%w: channels is required", domain.ErrValidation)
	}

	targets := make([]domain.NotificationTarget, 0, len(req.Targets))
	for _, item := range req.Targets {
		entityType, err := domain.ParseEntityTypeFromString(item.EntityType)
		if err != nil {
			return domain.BatchJob{}, err
		}
		targets = append(targets, domain.NotificationTarget{
			EntityType: entityType,
			EntityID:   strings.TrimSpace(item.EntityID),
		})
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	for _, raw := range req.Channels {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return domain.BatchJob{}, err
		}
		channels = append(channels, channel)
	}

	return domain.BatchJob{Targets: targets, Channels: channels}, nil
}

func toTargetResponse(target domain.NotificationTarget) targetResponse {
	return targetResponse{
		EntityType: target.EntityType.String(),
		EntityID:   target.EntityID,
	}
}

func toDispatchResultResponses(results []domain.DispatchResult) []dispatchResultResponse {
	responses := make([]dispatchResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, dispatchResultResponse{
			Target:    toTargetResponse(result.Target),
			Channel:   result.Channel.String(),
			Success:   result.Success,
			Recipient: result.Recipient,
			Error:     result.Error,
		})
	}
	return responses
}

func toProgressResponse(progress domain.BatchProgress) progressResponse {
	resp := progressResponse{
		JobID:      progress.JobID,
		Status:     progress.Status.String(),
		Total:      progress.Total,
		Current:    progress.Current,
		Sent:       progress.Sent,
		Failed:     progress.Failed,
		Results:    toDispatchResultResponses(progress.Results),
		StartedAt:  progress.StartedAt,
		FinishedAt: progress.FinishedAt,
	}
	if progress.CurrentTarget != nil {
		target := toTargetResponse(*progress.CurrentTarget)
		resp.CurrentTarget = &target
	}
	return resp
}

func toRunResponse(run *domain.Run) runResponse {
	if run == nil {
		return runResponse{}
	}
	return runResponse{
		ID:          run.ID,
		JobID:       run.JobID,
		Status:      run.Status.String(),
		TotalCount:  run.TotalCount,
		SentCount:   run.SentCount,
		FailedCount: run.FailedCount,
		Results:     toDispatchResultResponses(run.Results),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		CreatedAt:   run.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
