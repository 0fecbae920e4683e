package notify

import (
	"context"
	"fmt"
	"time"

	"protected-docs/internal/queue"
	"protected-docs/internal/requests"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/shared/util"
)

// QueueNotifier publishes notifications for the mail consumer.
type QueueNotifier struct {
	Client queue.Client
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(client queue.Client) *QueueNotifier {
	return &QueueNotifier{Client: client}
}

// Notify enqueues n.
func (q *QueueNotifier) Notify(ctx context.Context, n requests.Notification) error {
	if n.RecipientEmail == "" {
		return fmt.Errorf("notification %s for request %s has no recipient", n.Kind, n.RequestID)
	}
	if err := q.Client.Send(ctx, ToMessage(n)); err != nil {
		return fmt.Errorf("enqueue %s: %w", n.Kind, err)
	}
	return nil
}

// ToMessage converts a notification into its queue payload.
func ToMessage(n requests.Notification) queue.Message {
	occurred := n.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return queue.Message{
		Kind:           string(n.Kind),
		RequestID:      n.RequestID,
		DocumentID:     n.DocumentID,
		DocumentTitle:  n.DocumentTitle,
		To:             n.RecipientEmail,
		ToName:         n.RecipientName,
		RequesterEmail: n.RequesterEmail,
		DownloadURL:    n.DownloadURL,
		OccurredAt:     occurred.UTC().Format(time.RFC3339),
		Version:        queue.MessageVersion,
	}
}

// LogNotifier records notifications in the log when no queue is configured.
// Download links carry the token and are never logged.
type LogNotifier struct{}

// Notify logs n.
func (LogNotifier) Notify(_ context.Context, n requests.Notification) error {
	telemetry.Info("notify.logged", map[string]any{
		"kind":              string(n.Kind),
		"access_request_id": n.RequestID,
		"document_id":       n.DocumentID,
		"recipient":         util.HashEmail(n.RecipientEmail),
		"has_download_url":  n.DownloadURL != "",
	})
	return nil
}

var (
	_ requests.Notifier = (*QueueNotifier)(nil)
	_ requests.Notifier = LogNotifier{}
)
