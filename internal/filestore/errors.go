package filestore

import "errors"

var (
	ErrStorage             = errors.New("storage failure")
	ErrFileNotFound        = errors.New("file not found")
	ErrMigrationInProgress = errors.New("migration already in progress")
	ErrPartialMigration    = errors.New("some files failed to migrate")
)
