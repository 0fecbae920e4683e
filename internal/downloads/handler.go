package downloads

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"protected-docs/internal/documents"
	"protected-docs/internal/filestore"
	"protected-docs/internal/requests"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/server/middleware"
	"protected-docs/internal/shared/server/respond"
	"protected-docs/internal/shared/storage/object"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/shared/util"
	"protected-docs/internal/tokens"
)

// Validator checks the four download parameters against the ledger.
type Validator interface {
	Validate(ctx context.Context, documentID, token, email, requestID string) (requests.AccessRequest, error)
}

// DocumentLookup resolves the document being downloaded.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (documents.Document, error)
}

// FileOpener streams a document's stored file.
type FileOpener interface {
	Open(ctx context.Context, doc documents.Document) (io.ReadCloser, object.Info, error)
}

// Handler serves token-gated downloads.
type Handler struct {
	Tokens    Validator
	Documents DocumentLookup
	Files     FileOpener
	// Limit runs before validation when set.
	Limit gin.HandlerFunc
}

// RegisterRoutes attaches the public download route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	handlers := []gin.HandlerFunc{}
	if h.Limit != nil {
		handlers = append(handlers, h.Limit)
	}
	handlers = append(handlers, h.download)
	rg.GET("/download", handlers...)
}

func (h *Handler) download(c *gin.Context) {
	documentID := c.Query("document_id")
	requestID := c.Query("request_id")
	email := c.Query("email")
	c.Set(middleware.DocumentIDKey, documentID)
	c.Set(middleware.AccessRequestIDKey, requestID)

	ctx := c.Request.Context()
	req, err := h.Tokens.Validate(ctx, documentID, c.Query("hash"), email, requestID)
	if err != nil {
		var authErr *tokens.AuthorizationError
		if errors.As(err, &authErr) {
			metrics.ObserveDownload("denied")
			telemetry.Warn("download.denied", map[string]any{
				"reason":            string(authErr.Reason),
				"document_id":       documentID,
				"access_request_id": requestID,
				"email":             util.HashEmail(email),
				"client_ip":         c.ClientIP(),
			})
			respond.Error(c, http.StatusForbidden, "authorization_failed", "access denied", nil)
			return
		}
		metrics.ObserveDownload("error")
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to validate download", nil)
		return
	}

	doc, err := h.Documents.Get(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			metrics.ObserveDownload("not_found")
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		metrics.ObserveDownload("error")
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load document", nil)
		return
	}

	reader, info, err := h.Files.Open(ctx, doc)
	if err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			metrics.ObserveDownload("not_found")
			telemetry.Error("download.file_missing", map[string]any{
				"document_id": doc.ID,
				"key":         doc.StorageKey,
				"location":    string(doc.Location),
			})
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		metrics.ObserveDownload("error")
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load file", nil)
		return
	}
	defer reader.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", attachment(doc))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	if info.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(info.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	written, err := io.Copy(c.Writer, reader)
	if err != nil {
		metrics.ObserveDownload("interrupted")
		telemetry.Warn("download.interrupted", map[string]any{
			"document_id": doc.ID,
			"written":     written,
			"error":       err,
		})
		return
	}
	metrics.ObserveDownload("served")
}

func attachment(doc documents.Document) string {
	name := doc.FileName
	if name == "" {
		name = object.BaseName(doc.StorageKey)
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
