package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DeliveryError indicates the sink rejected the payload. The run fails;
// retry policy belongs to the invoking scheduler, not here.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("notification sink rejected payload (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("notification sink rejected payload (%d)", e.StatusCode)
}

// Notifier 定义通知投递接口。
type Notifier interface {
	Notify(ctx context.Context, payload Payload) error
	NotifyError(ctx context.Context, payload ErrorPayload) error
}

// WebhookNotifier delivers payload documents to an HTTP endpoint as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs a webhook sink.
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "alert_webhook").Logger(),
	}
}

// Notify 投递完整通知文档。
func (n *WebhookNotifier) Notify(ctx context.Context, payload Payload) error {
	if err := n.post(ctx, payload, payload.IdempotencyKey); err != nil {
		return err
	}
	n.logger.Info().
		Str("file_name", payload.FileName).
		Int("flagged_count", payload.FlaggedCount).
		Int("rows_evaluated", payload.RowsEvaluated).
		Msg("通知已投递")
	return nil
}

// NotifyError delivers the reduced diagnostic document for a failed run.
func (n *WebhookNotifier) NotifyError(ctx context.Context, payload ErrorPayload) error {
	if err := n.post(ctx, payload, ""); err != nil {
		return err
	}
	n.logger.Info().
		Str("stage", payload.Error.Stage).
		Str("file_name", payload.FileName).
		Msg("错误通知已投递")
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, document any, idempotencyKey string) error {
	if n.url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
