package documents

import "context"

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	GetByStorageKey(ctx context.Context, key string, loc Location) (Document, error)
	List(ctx context.Context, limit, offset int) ([]Document, error)
	ListByLocation(ctx context.Context, loc Location) ([]Document, error)
	UpdateFile(ctx context.Context, id string, ref FileRef) error
}
