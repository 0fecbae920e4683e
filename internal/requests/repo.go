package requests

import "context"

// Repo is the access request ledger.
type Repo interface {
	Create(ctx context.Context, req AccessRequest) error
	GetByID(ctx context.Context, id string) (AccessRequest, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]AccessRequest, error)
	// Update loads the record, applies mutate and persists status, hash and updated_at
	// as one write. Concurrent updates of the same id are serialized. If mutate
	// returns an error nothing is written.
	Update(ctx context.Context, id string, mutate func(*AccessRequest) error) (AccessRequest, error)
}
