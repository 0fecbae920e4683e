package requests

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]AccessRequest
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]AccessRequest)}
}

func (r *MemoryRepo) Create(ctx context.Context, req AccessRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[req.ID] = req
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (AccessRequest, error) {
	if err := ctx.Err(); err != nil {
		return AccessRequest{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.data[id]
	if !ok {
		return AccessRequest{}, ErrNotFound
	}
	return req, nil
}

func (r *MemoryRepo) List(ctx context.Context, filter Filter, limit, offset int) ([]AccessRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	out := make([]AccessRequest, 0, len(r.data))
	for _, req := range r.data {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.DocumentID != "" && req.DocumentID != filter.DocumentID {
			continue
		}
		out = append(out, req)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []AccessRequest{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (r *MemoryRepo) Update(ctx context.Context, id string, mutate func(*AccessRequest) error) (AccessRequest, error) {
	if err := ctx.Err(); err != nil {
		return AccessRequest{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[id]
	if !ok {
		return AccessRequest{}, ErrNotFound
	}
	next := current
	if err := mutate(&next); err != nil {
		return AccessRequest{}, err
	}
	current.Status = next.Status
	current.SecureHash = next.SecureHash
	current.UpdatedAt = next.UpdatedAt
	r.data[id] = current
	return current, nil
}

var _ Repo = (*MemoryRepo)(nil)
