package requests

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"protected-docs/internal/documents"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/shared/util"
)

const maxNameLength = 200

// DocumentLookup resolves the document a request refers to.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (documents.Document, error)
}

// TokenIssuer mints download tokens and renders download links.
type TokenIssuer interface {
	Issue(documentID, requestID string) (string, error)
	DownloadURL(documentID, hash, email, requestID string) string
}

// TransitionResult reports the outcome of a lifecycle transition.
// A failed notification does not undo the transition.
type TransitionResult struct {
	Request        AccessRequest
	PreviousStatus Status
	DownloadURL    string
	Notified       bool
	NotifyError    string
}

// Service owns the request lifecycle.
type Service struct {
	Repo       Repo
	Documents  DocumentLookup
	Tokens     TokenIssuer
	Notifier   Notifier
	AdminEmail string
	Now        func() time.Time
}

// Submit records a new pending request and tells the administrator about it.
func (s *Service) Submit(ctx context.Context, documentID, name, email string) (AccessRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return AccessRequest{}, fmt.Errorf("%w: name is required and must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return AccessRequest{}, err
	}

	doc, err := s.Documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return AccessRequest{}, ErrDocumentNotFound
		}
		return AccessRequest{}, err
	}

	now := s.now()
	req := AccessRequest{
		ID:             uuid.NewString(),
		DocumentID:     doc.ID,
		RequesterName:  name,
		RequesterEmail: normalized,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return AccessRequest{}, err
	}

	if s.AdminEmail != "" {
		_ = s.notify(ctx, Notification{
			Kind:           KindSubmitted,
			RequestID:      req.ID,
			DocumentID:     doc.ID,
			DocumentTitle:  doc.Title,
			RecipientEmail: s.AdminEmail,
			RecipientName:  "Administrator",
			RequesterEmail: req.RequesterEmail,
			OccurredAt:     now,
		})
	}
	return req, nil
}

// Accept grants access. A fresh token is issued on every call, replacing any earlier one.
func (s *Service) Accept(ctx context.Context, id string) (TransitionResult, error) {
	res, err := s.transition(ctx, id, StatusAccepted, func(r *AccessRequest) error {
		hash, err := s.Tokens.Issue(r.DocumentID, r.ID)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		r.SecureHash = hash
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	req := res.Request
	res.DownloadURL = s.Tokens.DownloadURL(req.DocumentID, req.SecureHash, req.RequesterEmail, req.ID)
	s.notifyDecision(ctx, &res, KindAccepted)
	return res, nil
}

// Decline refuses access and revokes any token.
func (s *Service) Decline(ctx context.Context, id string) (TransitionResult, error) {
	res, err := s.transition(ctx, id, StatusDeclined, clearHash)
	if err != nil {
		return TransitionResult{}, err
	}
	s.notifyDecision(ctx, &res, KindDeclined)
	return res, nil
}

// Deactivate revokes access silently.
func (s *Service) Deactivate(ctx context.Context, id string) (TransitionResult, error) {
	return s.transition(ctx, id, StatusInactive, clearHash)
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id string) (AccessRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return AccessRequest{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]AccessRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.DocumentID != "" {
		if _, err := uuid.Parse(filter.DocumentID); err != nil {
			return []AccessRequest{}, nil
		}
	}
	return s.Repo.List(ctx, filter, limit, offset)
}

// Transition renders "from->to" for logs and metrics.
func Transition(from, to Status) string {
	return string(from) + "->" + string(to)
}

func (s *Service) transition(ctx context.Context, id string, to Status, apply func(*AccessRequest) error) (TransitionResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return TransitionResult{}, ErrNotFound
	}

	var prev Status
	updated, err := s.Repo.Update(ctx, id, func(r *AccessRequest) error {
		prev = r.Status
		r.Status = to
		r.UpdatedAt = s.now()
		return apply(r)
	})
	if errors.Is(err, ErrNotFound) {
		return TransitionResult{}, err
	}
	metrics.ObserveTransition(Transition(prev, to), err)
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Request: updated, PreviousStatus: prev}, nil
}

func (s *Service) notifyDecision(ctx context.Context, res *TransitionResult, kind NotificationKind) {
	req := res.Request
	title := ""
	if doc, err := s.Documents.Get(ctx, req.DocumentID); err == nil {
		title = doc.Title
	}
	err := s.notify(ctx, Notification{
		Kind:           kind,
		RequestID:      req.ID,
		DocumentID:     req.DocumentID,
		DocumentTitle:  title,
		RecipientEmail: req.RequesterEmail,
		RecipientName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		DownloadURL:    res.DownloadURL,
		OccurredAt:     req.UpdatedAt,
	})
	if err != nil {
		res.NotifyError = err.Error()
		return
	}
	res.Notified = true
}

func (s *Service) notify(ctx context.Context, n Notification) error {
	if s.Notifier == nil {
		return errors.New("notifier not configured")
	}
	err := s.Notifier.Notify(ctx, n)
	metrics.ObserveNotification(string(n.Kind), err)
	if err != nil {
		telemetry.Warn("notify.failed", map[string]any{
			"access_request_id": n.RequestID,
			"document_id":       n.DocumentID,
			"kind":              string(n.Kind),
			"recipient":         util.HashEmail(n.RecipientEmail),
			"error":             err,
		})
	}
	return err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func clearHash(r *AccessRequest) error {
	r.SecureHash = ""
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := util.NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: a valid email address is required", ErrInvalidInput)
	}
	return email, nil
}
