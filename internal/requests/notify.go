package requests

import (
	"context"
	"time"
)

// NotificationKind names the event a notification reports.
type NotificationKind string

const (
	KindSubmitted NotificationKind = "request_submitted"
	KindAccepted  NotificationKind = "request_accepted"
	KindDeclined  NotificationKind = "request_declined"
)

// Notification is an outbound message about a request.
type Notification struct {
	Kind           NotificationKind
	RequestID      string
	DocumentID     string
	DocumentTitle  string
	RecipientEmail string
	RecipientName  string
	RequesterEmail string
	DownloadURL    string
	OccurredAt     time.Time
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
