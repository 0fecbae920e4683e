package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"protected-docs/internal/extract"
	"protected-docs/internal/shared/storage/object"
)

// MaxUploadBytes caps a single document upload.
const MaxUploadBytes = 20 << 20

// FileStore persists document bytes and resolves file references.
type FileStore interface {
	Store(ctx context.Context, fileName, contentType string, r io.Reader) (FileRef, error)
	Locate(ctx context.Context, ref FileRef) (object.Info, error)
}

// Service contains business logic for documents.
type Service struct {
	Repo  Repo
	Files FileStore
	Now   func() time.Time
}

// Upload stores the file in the protected root and records the document.
func (s *Service) Upload(ctx context.Context, title, fileName string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return Document{}, ErrTooLarge
	}
	if len(data) == 0 {
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	info, err := extract.Inspect(ctx, data, http.DetectContentType(data), fileName)
	if err != nil {
		if errors.Is(err, extract.ErrUnreadable) {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Document{}, err
	}

	ref, err := s.Files.Store(ctx, fileName, info.MimeType, bytes.NewReader(data))
	if err != nil {
		return Document{}, err
	}

	now := s.now()
	doc := Document{
		ID:         uuid.NewString(),
		Title:      titleOrDefault(title, fileName),
		FileName:   fileName,
		MimeType:   info.MimeType,
		SizeBytes:  int64(len(data)),
		PageCount:  info.PageCount,
		StorageKey: ref.Key,
		Location:   ref.Location,
		Checksum:   ref.Checksum,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// RegisterLegacy records a document whose file already sits in the legacy uploads root.
// Migration later moves it behind protection.
func (s *Service) RegisterLegacy(ctx context.Context, title, storageKey string) (Document, error) {
	storageKey = strings.Trim(strings.TrimSpace(storageKey), "/")
	if storageKey == "" {
		return Document{}, fmt.Errorf("%w: storageKey is required", ErrInvalidInput)
	}

	owner, err := s.Repo.GetByStorageKey(ctx, storageKey, LocationLegacy)
	switch {
	case err == nil:
		return Document{}, fmt.Errorf("%w: legacy file %s already belongs to document %s", ErrInvalidInput, storageKey, owner.ID)
	case !errors.Is(err, ErrNotFound):
		return Document{}, err
	}

	info, err := s.Files.Locate(ctx, FileRef{Key: storageKey, Location: LocationLegacy})
	if err != nil {
		if errors.Is(err, object.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: legacy file %s not found", ErrInvalidInput, storageKey)
		}
		return Document{}, err
	}

	fileName := path.Base(storageKey)
	mimeType := mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	now := s.now()
	doc := Document{
		ID:         uuid.NewString(),
		Title:      titleOrDefault(title, fileName),
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  info.SizeBytes,
		StorageKey: storageKey,
		Location:   LocationLegacy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if errors.Is(err, ErrFileInUse) {
			return Document{}, fmt.Errorf("%w: legacy file %s is already registered", ErrInvalidInput, storageKey)
		}
		return Document{}, err
	}
	return doc, nil
}

// Get returns a document by ID. Malformed IDs resolve to ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns documents newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func titleOrDefault(title, fileName string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
