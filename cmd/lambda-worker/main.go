package main

// Build the notification delivery Lambda:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"protected-docs/internal/notify"
	"protected-docs/internal/shared/config"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/workerproc"
)

func newDeliverer(cfg config.Config) workerproc.Deliverer {
	if cfg.NotifyWebhookURL != "" {
		return notify.NewWebhookDeliverer(cfg.NotifyWebhookURL)
	}
	return notify.LogDeliverer{}
}

// handle reports transient failures back to SQS for redelivery.
// Unparseable and rejected records are acknowledged so they do not loop.
func handle(ctx context.Context, d workerproc.Deliverer, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		fields := map[string]any{"sqs_message_id": record.MessageId}

		msg, _, err := workerproc.ParseMessage(record.Body)
		if err != nil {
			fields["error"] = err.Error()
			telemetry.Error("worker.notification.unparseable", fields)
			metrics.ObserveDelivery("dropped")
			continue
		}
		fields["kind"] = msg.Kind
		fields["access_request_id"] = msg.RequestID

		err = workerproc.HandleMessage(ctx, d, msg, func(err error) bool { return errors.Is(err, notify.ErrRejected) })
		var de workerproc.ErrDeliver
		switch {
		case err == nil:
			metrics.ObserveDelivery("delivered")
		case errors.As(err, &de) && de.Permanent:
			fields["error"] = err.Error()
			telemetry.Error("worker.notification.rejected", fields)
			metrics.ObserveDelivery("dropped")
		default:
			fields["error"] = err.Error()
			telemetry.Warn("worker.notification.retry", fields)
			metrics.ObserveDelivery("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	d := newDeliverer(config.Load())
	lambda.Start(func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, d, event), nil
	})
}
