// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// WebhookSender posts notifications as JSON to a configured endpoint
type WebhookSender struct {
	url           string
	headers       map[string]string
	retryAttempts int
	retryDelay    time.Duration
	retryBackoff  string
	logger        *NotificationLogger
	httpClient    *http.Client
}

// WebhookPayload defines the webhook payload structure
type WebhookPayload struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	Source    string               `json:"source"`
	Type      string               `json:"type"`
	Data      *models.Notification `json:"data"`
	Version   string               `json:"version"`
}

// WebhookRetryConfig defines retry configuration for webhooks
type WebhookRetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Backoff     string        `json:"backoff"` // exponential, linear, fixed
}

// WebhookResponse represents a webhook response
type WebhookResponse struct {
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
	Success      bool          `json:"success"`
	Error        error         `json:"error,omitempty"`
	Body         string        `json:"body,omitempty"`
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(cfg *config.NotificationConfig, logger *NotificationLogger) *WebhookSender {
	return &WebhookSender{
		url:           cfg.Webhook.URL,
		headers:       cfg.Webhook.Headers,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		retryBackoff:  cfg.RetryBackoff,
		logger:        logger.WithField("sender", "webhook"),
		httpClient: &http.Client{
			Timeout: cfg.NotificationTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Name implements Sender
func (ws *WebhookSender) Name() string { return "webhook" }

// Send posts the notification, retrying with backoff on failure
func (ws *WebhookSender) Send(ctx context.Context, n *models.Notification) error {
	payload := &WebhookPayload{
		ID:        n.ID,
		Timestamp: time.Now(),
		Source:    "factory-monitor",
		Type:      n.Type,
		Data:      n,
		Version:   "1.0",
	}

	response := ws.sendWithRetry(ctx, payload)
	ws.logger.LogWebhookResponse(ws.url, response.StatusCode, response.ResponseTime, response.Error)

	return response.Error
}

// retryConfig resolves the sender settings; at least one attempt is made
func (ws *WebhookSender) retryConfig() *WebhookRetryConfig {
	rc := &WebhookRetryConfig{
		MaxAttempts: ws.retryAttempts,
		BaseDelay:   ws.retryDelay,
		MaxDelay:    30 * time.Second,
		Backoff:     ws.retryBackoff,
	}
	if rc.Backoff == "" {
		rc.Backoff = "exponential"
	}
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	return rc
}

func (ws *WebhookSender) sendWithRetry(ctx context.Context, payload *WebhookPayload) *WebhookResponse {
	retryConfig := ws.retryConfig()

	var lastResponse *WebhookResponse

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := calculateRetryDelay(retryConfig, attempt)
			ws.logger.LogRetryAttempt("webhook", attempt, retryConfig.MaxAttempts, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &WebhookResponse{Error: ctx.Err()}
			}
		}

		response := ws.sendSingle(ctx, payload)
		lastResponse = response
		if response.Success {
			return response
		}
	}

	return lastResponse
}

func (ws *WebhookSender) sendSingle(ctx context.Context, payload *WebhookPayload) *WebhookResponse {
	startTime := time.Now()
	response := &WebhookResponse{}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err.Error())
		return response
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(jsonData))
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeInternal, "Failed to create webhook request", err.Error())
		return response
	}
	ws.setRequestHeaders(req)

	resp, err := ws.httpClient.Do(req)
	response.ResponseTime = time.Since(startTime)
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeExternal, "Failed to send webhook", err.Error())
		return response
	}
	defer resp.Body.Close()

	response.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	response.Body = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		response.Success = true
	} else {
		response.Error = utils.NewAppError(utils.ErrCodeExternal,
			"Webhook returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, response.Body))
	}

	return response
}

func (ws *WebhookSender) setRequestHeaders(req *http.Request) {
	for key, value := range ws.headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Factory-Monitor/1.0")
	}
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Request-ID", utils.GenerateID())
}

// calculateRetryDelay returns the wait before the given attempt (attempt >= 2)
func calculateRetryDelay(config *WebhookRetryConfig, attempt int) time.Duration {
	var delay time.Duration

	switch config.Backoff {
	case "exponential":
		// base_delay * 2^(attempt-2), saturating at max_delay
		shift := attempt - 2
		if shift < 0 {
			shift = 0
		}
		delay = config.BaseDelay
		for i := 0; i < shift && delay > 0 && delay < config.MaxDelay; i++ {
			delay *= 2
		}
	case "linear":
		delay = time.Duration(int64(config.BaseDelay) * int64(attempt-1))
	default:
		delay = config.BaseDelay
	}

	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	return delay
}
