package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"protected-docs/internal/documents"
	"protected-docs/internal/shared/lock"
	"protected-docs/internal/shared/storage/object"
	"protected-docs/internal/shared/telemetry"
)

const (
	migrationLockName = "file-migration"
	defaultLockTTL    = 30 * time.Minute
)

// ProtectedStore is an object store whose root can be shielded from direct access.
type ProtectedStore interface {
	object.ObjectStore
	object.Protector
}

// DocumentRepo is the slice of the document repository the file store needs.
type DocumentRepo interface {
	GetByID(ctx context.Context, id string) (documents.Document, error)
	ListByLocation(ctx context.Context, loc documents.Location) ([]documents.Document, error)
	UpdateFile(ctx context.Context, id string, ref documents.FileRef) error
}

// Service places document files behind protection and moves legacy files there.
type Service struct {
	Protected   ProtectedStore
	Legacy      object.ObjectStore
	Docs        DocumentRepo
	Locker      lock.Locker
	Concurrency int
	LockTTL     time.Duration
	Now         func() time.Time

	provisionMu sync.Mutex
	provisioned bool
}

// StoreStatus is the operator view of the protected root.
type StoreStatus struct {
	object.Status
	LegacyPending int `json:"legacyPending"`
}

// Store writes an upload into the protected root and returns its reference.
func (s *Service) Store(ctx context.Context, fileName, contentType string, r io.Reader) (documents.FileRef, error) {
	if err := s.ensureProtected(ctx); err != nil {
		return documents.FileRef{}, err
	}

	key, err := object.NewKey(fileName, s.now())
	if err != nil {
		return documents.FileRef{}, fmt.Errorf("%w: %v", documents.ErrInvalidInput, err)
	}

	h := newHasher()
	size, err := s.Protected.SaveWithKey(ctx, key, contentType, io.TeeReader(r, h))
	if err != nil {
		return documents.FileRef{}, fmt.Errorf("%w: save %s: %v", ErrStorage, key, err)
	}
	return documents.FileRef{
		Key:       key,
		Location:  documents.LocationProtected,
		Checksum:  formatChecksum(h),
		SizeBytes: size,
	}, nil
}

// Locate resolves a reference in the store its location names.
func (s *Service) Locate(ctx context.Context, ref documents.FileRef) (object.Info, error) {
	store, err := s.storeFor(ref.Location)
	if err != nil {
		return object.Info{}, err
	}
	return store.Stat(ctx, ref.Key)
}

// Open returns a reader for a document's file along with its metadata.
func (s *Service) Open(ctx context.Context, doc documents.Document) (io.ReadCloser, object.Info, error) {
	store, err := s.storeFor(doc.Location)
	if err != nil {
		return nil, object.Info{}, err
	}
	info, err := store.Stat(ctx, doc.StorageKey)
	if err != nil {
		return nil, object.Info{}, s.mapMissing(err, doc)
	}
	rc, err := store.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, object.Info{}, s.mapMissing(err, doc)
	}
	return rc, info, nil
}

// Status reports the protected root's health and how many files still wait in the legacy root.
func (s *Service) Status(ctx context.Context) (StoreStatus, error) {
	st, err := s.Protected.Status(ctx)
	if err != nil {
		return StoreStatus{}, fmt.Errorf("%w: status: %v", ErrStorage, err)
	}
	pending, err := s.Docs.ListByLocation(ctx, documents.LocationLegacy)
	if err != nil {
		return StoreStatus{}, err
	}
	return StoreStatus{Status: st, LegacyPending: len(pending)}, nil
}

// RepairOutcome says what Repair did.
type RepairOutcome string

const (
	RepairUnchanged RepairOutcome = "unchanged"
	RepairRelinked  RepairOutcome = "relinked"
)

// RepairResult describes a repaired association.
type RepairResult struct {
	DocumentID string             `json:"documentId"`
	Outcome    RepairOutcome      `json:"outcome"`
	Location   documents.Location `json:"location"`
	StorageKey string             `json:"storageKey"`
}

// Repair relinks a document whose stored key no longer resolves.
// It searches the protected root first, then the legacy root, for a file with the same base name.
func (s *Service) Repair(ctx context.Context, docID string) (RepairResult, error) {
	doc, err := s.document(ctx, docID)
	if err != nil {
		return RepairResult{}, err
	}
	if _, err := s.Locate(ctx, doc.Ref()); err == nil {
		return RepairResult{DocumentID: doc.ID, Outcome: RepairUnchanged, Location: doc.Location, StorageKey: doc.StorageKey}, nil
	} else if !errors.Is(err, object.ErrNotExist) {
		return RepairResult{}, fmt.Errorf("%w: locate %s: %v", ErrStorage, doc.StorageKey, err)
	}

	want := object.BaseName(doc.StorageKey)
	if want == "" || want == "." {
		want = doc.FileName
	}
	for _, loc := range []documents.Location{documents.LocationProtected, documents.LocationLegacy} {
		store, err := s.storeFor(loc)
		if err != nil {
			continue
		}
		items, err := store.List(ctx)
		if err != nil {
			return RepairResult{}, fmt.Errorf("%w: list %s: %v", ErrStorage, loc, err)
		}
		match, ok := newestMatch(items, want)
		if !ok {
			continue
		}
		sum, size, err := checksumOf(ctx, store, match.Key)
		if err != nil {
			return RepairResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		ref := documents.FileRef{Key: match.Key, Location: loc, Checksum: sum, SizeBytes: size}
		if err := s.Docs.UpdateFile(ctx, doc.ID, ref); err != nil {
			return RepairResult{}, err
		}
		telemetry.Info("files.repair", map[string]any{
			"document_id": doc.ID,
			"from":        doc.StorageKey,
			"to":          match.Key,
			"location":    string(loc),
		})
		return RepairResult{DocumentID: doc.ID, Outcome: RepairRelinked, Location: loc, StorageKey: match.Key}, nil
	}
	return RepairResult{}, fmt.Errorf("%w: no stored file matches %s", ErrStorage, want)
}

func newestMatch(items []object.Info, baseName string) (object.Info, bool) {
	var matches []object.Info
	for _, item := range items {
		if object.BaseName(item.Key) == baseName || path.Base(item.Key) == baseName {
			matches = append(matches, item)
		}
	}
	if len(matches) == 0 {
		return object.Info{}, false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ModTime.After(matches[j].ModTime) })
	return matches[0], true
}

func (s *Service) document(ctx context.Context, id string) (documents.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return documents.Document{}, documents.ErrNotFound
	}
	return s.Docs.GetByID(ctx, id)
}

// Provision creates the protected root and its protection artifacts if they are missing.
func (s *Service) Provision(ctx context.Context) error {
	return s.ensureProtected(ctx)
}

func (s *Service) ensureProtected(ctx context.Context) error {
	s.provisionMu.Lock()
	defer s.provisionMu.Unlock()
	if s.provisioned {
		return nil
	}
	if err := s.Protected.EnsureProtection(ctx); err != nil {
		return fmt.Errorf("%w: provision protected root: %v", ErrStorage, err)
	}
	s.provisioned = true
	return nil
}

func (s *Service) storeFor(loc documents.Location) (object.ObjectStore, error) {
	switch loc {
	case documents.LocationProtected, "":
		return s.Protected, nil
	case documents.LocationLegacy:
		if s.Legacy == nil {
			return nil, fmt.Errorf("%w: legacy root not configured", ErrStorage)
		}
		return s.Legacy, nil
	default:
		return nil, fmt.Errorf("%w: unknown location %q", ErrStorage, loc)
	}
}

func (s *Service) mapMissing(err error, doc documents.Document) error {
	if errors.Is(err, object.ErrNotExist) {
		return fmt.Errorf("%w: document %s key %s", ErrFileNotFound, doc.ID, doc.StorageKey)
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func fileNameFor(doc documents.Document) string {
	if name := strings.TrimSpace(doc.FileName); name != "" {
		return name
	}
	return object.BaseName(doc.StorageKey)
}

var _ documents.FileStore = (*Service)(nil)
