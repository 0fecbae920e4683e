package tokens

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"protected-docs/internal/requests"
	"protected-docs/internal/shared/util"
)

// TokenBytes is the entropy of a download token before hex encoding.
const TokenBytes = 32

// ErrAuthorization is returned for every failed download validation.
var ErrAuthorization = errors.New("authorization failed")

// DenyReason explains why a download was refused. It is logged, never shown to the caller.
type DenyReason string

const (
	ReasonMissingParameter DenyReason = "missing_parameter"
	ReasonUnknownRequest   DenyReason = "unknown_request"
	ReasonDocumentMismatch DenyReason = "document_mismatch"
	ReasonEmailMismatch    DenyReason = "email_mismatch"
	ReasonNotAccepted      DenyReason = "not_accepted"
	ReasonHashMismatch     DenyReason = "hash_mismatch"
)

// AuthorizationError carries the deny reason and matches ErrAuthorization.
type AuthorizationError struct {
	Reason DenyReason
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthorization, e.Reason)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrAuthorization
}

func deny(reason DenyReason) error {
	return &AuthorizationError{Reason: reason}
}

// RequestReader loads ledger records for validation.
type RequestReader interface {
	GetByID(ctx context.Context, id string) (requests.AccessRequest, error)
}

// Issuer mints and checks download tokens.
type Issuer struct {
	Requests RequestReader
	BaseURL  string
	Random   io.Reader
}

// NewIssuer builds an Issuer that links downloads under baseURL.
func NewIssuer(reqs RequestReader, baseURL string) *Issuer {
	return &Issuer{Requests: reqs, BaseURL: strings.TrimRight(baseURL, "/"), Random: rand.Reader}
}

// Issue returns a fresh random token. The ids only label errors; the token carries no derivable content.
func (i *Issuer) Issue(documentID, requestID string) (string, error) {
	src := i.Random
	if src == nil {
		src = rand.Reader
	}
	var b [TokenBytes]byte
	if _, err := io.ReadFull(src, b[:]); err != nil {
		return "", fmt.Errorf("read random for request %s document %s: %w", requestID, documentID, err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Validate checks a download attempt against the ledger and returns the matching request.
func (i *Issuer) Validate(ctx context.Context, documentID, token, email, requestID string) (requests.AccessRequest, error) {
	documentID = strings.TrimSpace(documentID)
	token = strings.TrimSpace(token)
	requestID = strings.TrimSpace(requestID)
	email = util.NormalizeEmail(email)
	if documentID == "" || token == "" || email == "" || requestID == "" {
		return requests.AccessRequest{}, deny(ReasonMissingParameter)
	}

	req, err := i.Requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, requests.ErrNotFound) {
			return requests.AccessRequest{}, deny(ReasonUnknownRequest)
		}
		return requests.AccessRequest{}, err
	}

	switch {
	case req.DocumentID != documentID:
		return requests.AccessRequest{}, deny(ReasonDocumentMismatch)
	case util.NormalizeEmail(req.RequesterEmail) != email:
		return requests.AccessRequest{}, deny(ReasonEmailMismatch)
	case req.Status != requests.StatusAccepted || req.SecureHash == "":
		return requests.AccessRequest{}, deny(ReasonNotAccepted)
	case subtle.ConstantTimeCompare([]byte(req.SecureHash), []byte(token)) != 1:
		return requests.AccessRequest{}, deny(ReasonHashMismatch)
	}
	return req, nil
}

// DownloadURL renders the link sent to an accepted requester.
func (i *Issuer) DownloadURL(documentID, hash, email, requestID string) string {
	q := url.Values{}
	q.Set("document_id", documentID)
	q.Set("hash", hash)
	q.Set("email", email)
	q.Set("request_id", requestID)
	return i.BaseURL + "/api/v1/download?" + q.Encode()
}

var _ requests.TokenIssuer = (*Issuer)(nil)
