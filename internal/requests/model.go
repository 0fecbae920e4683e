package requests

import "time"

// Status is the lifecycle state of an access request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusInactive:
		return true
	}
	return false
}

// AccessRequest is a visitor's request to download a document.
// SecureHash is non-empty exactly while Status is accepted.
type AccessRequest struct {
	ID             string
	DocumentID     string
	RequesterName  string
	RequesterEmail string
	Status         Status
	SecureHash     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter narrows ledger queries. Zero values match everything.
type Filter struct {
	Status     Status
	DocumentID string
}
