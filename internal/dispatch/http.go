package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-engine/internal/domain"
)

const defaultClientTimeout = 15 * time.Second

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the remote back-office notification API over HTTP.
type HTTPClient struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	client := resty.New()
	client.SetTimeout(defaultClientTimeout)
	client.SetRetryCount(0)

	return NewHTTPClientWithClient(baseURL, client)
}

func NewHTTPClientWithClient(baseURL string, client *resty.Client) (*HTTPClient, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, fmt.Errorf("remote api url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid remote api url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultClientTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPClient{
		client:  client,
		baseURL: trimmedURL,
	}, nil
}

type wireTarget struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type manualSendRequest struct {
	Targets  []wireTarget `json:"targets"`
	Channels []string     `json:"channels"`
}

type wireDispatchResult struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Channel    string `json:"channel"`
	Success    bool   `json:"success"`
	Recipient  string `json:"recipient,omitempty"`
	Error      string `json:"error,omitempty"`
}

type manualSendResponse struct {
	Sent    int                  `json:"sent"`
	Failed  int                  `json:"failed"`
	Results []wireDispatchResult `json:"results"`
}

type cronDryRunResponse struct {
	CronName   string           `json:"cronName"`
	ExecutedAt time.Time        `json:"executedAt"`
	DurationMs int64            `json:"durationMs"`
	Summary    string           `json:"summary"`
	Items      []cronDryRunItem `json:"items"`
}

type cronDryRunItem struct {
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Channels    []string       `json:"channels,omitempty"`
	Condition   string         `json:"condition,omitempty"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type manualRunResponse struct {
	Success bool           `json:"success"`
	Skipped bool           `json:"skipped"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type queueStatsResponse struct {
	Invoices  int `json:"invoices"`
	Contracts int `json:"contracts"`
}

type invoiceQueueItem struct {
	InvoiceID      string   `json:"invoiceId"`
	CustomerName   string   `json:"customerName"`
	OverdueDays    int      `json:"overdueDays"`
	SentConditions []string `json:"sentConditions"`
}

type contractQueueItem struct {
	ContractID     string   `json:"contractId"`
	CustomerName   string   `json:"customerName"`
	Milestone      string   `json:"milestone"`
	SentConditions []string `json:"sentConditions"`
}

func (c *HTTPClient) SendManual(
	ctx context.Context,
	targets []domain.NotificationTarget,
	channels []domain.Channel,
) (*SendOutcome, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("dispatch client is not initialized")
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target is required", domain.ErrValidation)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", domain.ErrValidation)
	}

	reqBody := manualSendRequest{
		Targets:  make([]wireTarget, 0, len(targets)),
		Channels: make([]string, 0, len(channels)),
	}
	for _, target := range targets {
		if err := target.Validate(); err != nil {
			return nil, err
		}
		reqBody.Targets = append(reqBody.Targets, wireTarget{
			Type: target.EntityType.String(),
			ID:   target.EntityID,
		})
	}
	for _, channel := range channels {
		if !channel.IsValid() {
			return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
		}
		reqBody.Channels = append(reqBody.Channels, channel.String())
	}

	var respBody manualSendResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&respBody).
		Post(c.baseURL + "/notifications/manual-send")
	if err := classifyResponse(response, err); err != nil {
		return nil, err
	}

	results := make([]domain.DispatchResult, 0, len(respBody.Results))
	for _, item := range respBody.Results {
		results = append(results, domain.DispatchResult{
			Target: domain.NotificationTarget{
				EntityType: domain.EntityType(item.EntityType),
				EntityID:   item.EntityID,
			},
			Channel:   domain.Channel(item.Channel),
			Success:   item.Success,
			Recipient: item.Recipient,
			Error:     item.Error,
		})
	}

	return &SendOutcome{
		Sent:    respBody.Sent,
		Failed:  respBody.Failed,
		Results: results,
	}, nil
}

func (c *HTTPClient) PreviewCron(ctx context.Context, cronName string) (*CronDryRun, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("dispatch client is not initialized")
	}

	trimmedName := strings.TrimSpace(cronName)
	if trimmedName == "" {
		return nil, fmt.Errorf("%w: cron name is required", domain.ErrValidation)
	}

	var respBody cronDryRunResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&respBody).
		Get(c.baseURL + "/cron/" + url.PathEscape(trimmedName) + "/dry-run")
	if err := classifyResponse(response, err); err != nil {
		return nil, err
	}

	items := make([]CronDryRunItem, 0, len(respBody.Items))
	for _, item := range respBody.Items {
		channels := make([]domain.Channel, 0, len(item.Channels))
		for _, channel := range item.Channels {
			channels = append(channels, domain.Channel(channel))
		}
		items = append(items, CronDryRunItem{
			EntityType:  item.EntityType,
			EntityID:    item.EntityID,
			Channels:    channels,
			Condition:   domain.Condition(item.Condition),
			Description: item.Description,
			Extra:       item.Extra,
		})
	}

	cronLabel := respBody.CronName
	if cronLabel == "" {
		cronLabel = trimmedName
	}

	return &CronDryRun{
		CronName:   cronLabel,
		ExecutedAt: respBody.ExecutedAt,
		Duration:   time.Duration(respBody.DurationMs) * time.Millisecond,
		Summary:    respBody.Summary,
		Items:      items,
	}, nil
}

func (c *HTTPClient) RunCronManual(
	ctx context.Context,
	cronName string,
	payload map[string]any,
) (*ManualRunOutcome, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("dispatch client is not initialized")
	}

	trimmedName := strings.TrimSpace(cronName)
	if trimmedName == "" {
		return nil, fmt.Errorf("%w: cron name is required", domain.ErrValidation)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	var respBody manualRunResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&respBody).
		Post(c.baseURL + "/cron/" + url.PathEscape(trimmedName) + "/manual-run")
	if err := classifyResponse(response, err); err != nil {
		return nil, err
	}

	return &ManualRunOutcome{
		Success: respBody.Success,
		Skipped: respBody.Skipped,
		Message: respBody.Message,
		Details: respBody.Details,
	}, nil
}

func (c *HTTPClient) QueueStats(ctx context.Context) (*QueueStats, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("dispatch client is not initialized")
	}

	var respBody queueStatsResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&respBody).
		Get(c.baseURL + "/notifications/queue/stats")
	if err := classifyResponse(response, err); err != nil {
		return nil, err
	}

	return &QueueStats{
		Invoices:  respBody.Invoices,
		Contracts: respBody.Contracts,
	}, nil
}

func (c *HTTPClient) InvoiceQueue(ctx context.Context) ([]InvoiceQueueEntry, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("dispatch client is not initialized")
	}

	var respBody []invoiceQueueItem
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&respBody).
		Get(c.baseURL + "/notifications/queue/invoices")
	if err := classifyResponse(response, err); err != nil {
		return nil, err
	}

	entries := make([]InvoiceQueueEntry, 0, len(respBody))
	for _, item := range respBody {
		entries = append(entries, InvoiceQueueEntry{
			InvoiceID:      item.InvoiceID,
			CustomerName:   item.CustomerName,
			OverdueDays:    item.OverdueDays,
			SentConditions: toConditions(item.SentConditions),
		})
	}
	return entries, nil
}

func (c *HTTPClient) ContractQueue(ctx context.Context) ([]ContractQueueEntry, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("dispatch client is not initialized")
	}

	var respBody []contractQueueItem
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&respBody).
		Get(c.baseURL + "/notifications/queue/contracts")
	if err := classifyResponse(response, err); err != nil {
		return nil, err
	}

	entries := make([]ContractQueueEntry, 0, len(respBody))
	for _, item := range respBody {
		entries = append(entries, ContractQueueEntry{
			ContractID:     item.ContractID,
			CustomerName:   item.CustomerName,
			Milestone:      domain.Milestone(item.Milestone),
			SentConditions: toConditions(item.SentConditions),
		})
	}
	return entries, nil
}

func toConditions(raw []string) []domain.Condition {
	conditions := make([]domain.Condition, 0, len(raw))
	for _, condition := range raw {
		conditions = append(conditions, domain.Condition(condition))
	}
	return conditions
}

func classifyResponse(response *resty.Response, err error) error {
	if err != nil {
		return &ClientError{
			Message:   "remote api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &ClientError{
			Message:   "remote api returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &ClientError{
		StatusCode: statusCode,
		Message:    remoteErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func remoteErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("remote api returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
