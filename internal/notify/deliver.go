package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"protected-docs/internal/queue"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/shared/util"
)

// ErrRejected marks a delivery the relay refused outright. Retrying will not help.
var ErrRejected = errors.New("delivery rejected")

// WebhookDeliverer posts queued notifications to a mail relay.
type WebhookDeliverer struct {
	URL    string
	Client *http.Client
}

// NewWebhookDeliverer constructs a WebhookDeliverer with a bounded client timeout.
func NewWebhookDeliverer(url string) *WebhookDeliverer {
	return &WebhookDeliverer{
		URL:    strings.TrimSpace(url),
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Deliver sends msg to the relay. 4xx responses wrap ErrRejected.
func (w *WebhookDeliverer) Deliver(ctx context.Context, msg queue.Message) error {
	payload, err := queue.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrRejected, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-Kind", msg.Kind)

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: relay returned %d", ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("webhook post: relay returned %d", resp.StatusCode)
	}
}

// LogDeliverer records queued notifications in the log when no relay is configured.
type LogDeliverer struct{}

// Deliver logs msg without the download link.
func (LogDeliverer) Deliver(_ context.Context, msg queue.Message) error {
	telemetry.Info("notify.delivered_to_log", map[string]any{
		"kind":              msg.Kind,
		"access_request_id": msg.RequestID,
		"document_id":       msg.DocumentID,
		"recipient":         util.HashEmail(msg.To),
		"has_download_url":  msg.DownloadURL != "",
	})
	return nil
}
