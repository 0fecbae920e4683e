package requests

import "errors"

var (
	ErrNotFound         = errors.New("access request not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
)
