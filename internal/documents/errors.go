package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("document too large")
	ErrFileInUse    = errors.New("file already belongs to a document")
)
