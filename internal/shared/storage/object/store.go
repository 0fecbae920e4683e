package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist is returned when a storage key does not resolve to an object.
var ErrNotExist = errors.New("object does not exist")

// Info describes a stored object.
type Info struct {
	Key       string
	SizeBytes int64
	ModTime   time.Time
}

// Status reports the health of a storage root as surfaced to operators.
type Status struct {
	FolderExists     bool `json:"folderExists"`
	ProtectionActive bool `json:"protectionActive"`
	Writable         bool `json:"writable"`
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Stat(ctx context.Context, storageKey string) (Info, error)
	Delete(ctx context.Context, storageKey string) error
	List(ctx context.Context) ([]Info, error)
}

// Protector is implemented by stores that can block listing and direct access to their root.
// Inspect is read-only and never reports Writable; Status also probes with a write.
type Protector interface {
	EnsureProtection(ctx context.Context) error
	Inspect(ctx context.Context) (Status, error)
	Status(ctx context.Context) (Status, error)
}
