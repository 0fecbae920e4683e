package main

// Drain the notification queue into the mail relay:
//   NOTIFY_SQS_QUEUE_URL=... NOTIFY_WEBHOOK_URL=... go run ./cmd/worker

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"protected-docs/internal/notify"
	"protected-docs/internal/shared/config"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(cfg.NotifyQueueURL)
	if queueURL == "" {
		log.Fatal("NOTIFY_SQS_QUEUE_URL is required")
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := max(1, cfg.WorkerConcurrency)
	shutdownTimeout := time.Duration(defaultShutdownTimeoutSec) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	var deliverer workerproc.Deliverer = notify.LogDeliverer{}
	if cfg.NotifyWebhookURL != "" {
		deliverer = notify.NewWebhookDeliverer(cfg.NotifyWebhookURL)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.start", map[string]any{
		"queue":       queueURL,
		"concurrency": concurrency,
		"visibility":  cfg.WorkerVisibilitySec,
		"webhook":     cfg.NotifyWebhookURL != "",
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(cfg.WorkerVisibilitySec),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, deliverer, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage deletes the message once it is delivered or can never be.
// Transient failures leave it for redelivery after the visibility timeout.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, d workerproc.Deliverer, msg sqstypes.Message) {
	decoded, meta, err := workerproc.ParseMessage(aws.ToString(msg.Body))
	if err != nil {
		fields := baseFields(msg, "", "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		var invalid workerproc.ErrInvalidMessage
		if errors.As(err, &invalid) {
			fields["access_request_id"] = invalid.RequestID
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.unparseable", fields)
		if deleteMessage(ctx, client, queueURL, msg) {
			metrics.ObserveDelivery("dropped")
		}
		return
	}

	fields := baseFields(msg, decoded.Kind, decoded.RequestID)
	if err := workerproc.HandleMessage(ctx, d, decoded, isRejected); err != nil {
		fields["error"] = err.Error()
		var de workerproc.ErrDeliver
		if errors.As(err, &de) && de.Permanent {
			telemetry.Error("worker.notification.rejected", fields)
			if deleteMessage(ctx, client, queueURL, msg) {
				metrics.ObserveDelivery("dropped")
			}
			return
		}
		telemetry.Warn("worker.notification.retry", fields)
		metrics.ObserveDelivery("failed")
		return
	}

	if deleteMessage(ctx, client, queueURL, msg) {
		telemetry.Info("worker.notification.delivered", fields)
		metrics.ObserveDelivery("delivered")
	}
}

func isRejected(err error) bool { return errors.Is(err, notify.ErrRejected) }

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, "", "")
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, "", "")
		fields["error"] = err.Error()
		telemetry.Error("worker.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, kind, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if kind != "" {
		fields["kind"] = kind
	}
	if strings.TrimSpace(requestID) != "" {
		fields["access_request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
