package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"protected-docs/internal/queue"
)

// Deliverer hands a decoded notification to its final transport.
type Deliverer interface {
	Deliver(ctx context.Context, msg queue.Message) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrInvalidMessage indicates a decoded payload that can never be delivered.
type ErrInvalidMessage struct {
	Meta      MessageMeta
	RequestID string
	Reason    string
}

func (e ErrInvalidMessage) Error() string { return "invalid message: " + e.Reason }

// ErrDeliver indicates delivery failed after successful parsing.
// Permanent failures are dropped instead of retried.
type ErrDeliver struct {
	RequestID string
	Kind      string
	Permanent bool
	Err       error
}

func (e ErrDeliver) Error() string {
	if e.Err == nil {
		return "deliver notification"
	}
	return "deliver notification: " + e.Err.Error()
}

func (e ErrDeliver) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	switch {
	case msg.Version > queue.MessageVersion:
		return msg, meta, ErrInvalidMessage{Meta: meta, RequestID: msg.RequestID, Reason: fmt.Sprintf("unsupported version %d", msg.Version)}
	case strings.TrimSpace(msg.Kind) == "":
		return msg, meta, ErrInvalidMessage{Meta: meta, RequestID: msg.RequestID, Reason: "missing kind"}
	case strings.TrimSpace(msg.To) == "":
		return msg, meta, ErrInvalidMessage{Meta: meta, RequestID: msg.RequestID, Reason: "missing recipient"}
	}
	return msg, meta, nil
}

// HandleMessage delivers a parsed message. permanent reports whether d
// classified the failure as not worth retrying.
func HandleMessage(ctx context.Context, d Deliverer, msg queue.Message, permanent func(error) bool) error {
	if d == nil {
		return errors.New("deliverer not configured")
	}
	if err := d.Deliver(ctx, msg); err != nil {
		return ErrDeliver{
			RequestID: msg.RequestID,
			Kind:      msg.Kind,
			Permanent: permanent != nil && permanent(err),
			Err:       err,
		}
	}
	return nil
}
