package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Document),
	}
}

// Create stores a document. A file already linked to another document is rejected.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if sameFile(existing, doc) {
			return ErrFileInUse
		}
	}
	r.data[doc.ID] = doc
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetByStorageKey returns the document linked to key in loc.
func (r *MemoryRepo) GetByStorageKey(ctx context.Context, key string, loc Location) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.data {
		if doc.StorageKey == key && locationOf(doc) == locationOrDefault(loc) {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

// List returns documents newest first, honoring limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	docs := r.snapshot(func(Document) bool { return true })
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// ListByLocation returns every document stored in loc.
func (r *MemoryRepo) ListByLocation(ctx context.Context, loc Location) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.snapshot(func(d Document) bool { return d.Location == loc }), nil
}

// UpdateFile rewrites the file association of a document.
func (r *MemoryRepo) UpdateFile(ctx context.Context, id string, ref FileRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	doc.StorageKey = ref.Key
	doc.Location = ref.Location
	doc.Checksum = ref.Checksum
	if ref.SizeBytes > 0 {
		doc.SizeBytes = ref.SizeBytes
	}
	doc.UpdatedAt = time.Now().UTC()
	r.data[id] = doc
	return nil
}

func sameFile(a, b Document) bool {
	return a.ID != b.ID && a.StorageKey == b.StorageKey && locationOf(a) == locationOf(b)
}

func locationOf(doc Document) Location {
	return locationOrDefault(doc.Location)
}

func locationOrDefault(loc Location) Location {
	if loc == "" {
		return LocationProtected
	}
	return loc
}

func (r *MemoryRepo) snapshot(keep func(Document) bool) []Document {
	r.mu.RLock()
	out := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		if keep(doc) {
			out = append(out, doc)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

var _ Repo = (*MemoryRepo)(nil)
