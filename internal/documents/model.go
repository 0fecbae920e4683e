package documents

import "time"

// Location says which storage root holds a document's file.
type Location string

const (
	LocationProtected Location = "protected"
	LocationLegacy    Location = "legacy"
)

// Document is a downloadable file managed by the service.
type Document struct {
	ID         string
	Title      string
	FileName   string
	MimeType   string
	SizeBytes  int64
	PageCount  int
	StorageKey string
	Location   Location
	Checksum   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FileRef points at a stored file.
type FileRef struct {
	Key       string
	Location  Location
	Checksum  string
	SizeBytes int64
}

// Ref returns the document's current file association.
func (d Document) Ref() FileRef {
	return FileRef{Key: d.StorageKey, Location: d.Location, Checksum: d.Checksum, SizeBytes: d.SizeBytes}
}
