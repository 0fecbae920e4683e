package documents

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, title, file_name, mime_type, size_bytes, page_count, storage_key, storage_location, checksum, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    title,
    file_name,
    mime_type,
    size_bytes,
    page_count,
    storage_key,
    storage_location,
    checksum,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	location := locationOrDefault(doc.Location)
	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.Title,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.PageCount,
		doc.StorageKey,
		string(location),
		nullString(doc.Checksum),
		doc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrFileInUse
	}
	return err
}

// GetByID fetches a live document.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// GetByStorageKey fetches the live document linked to key in loc.
func (r *PGRepo) GetByStorageKey(ctx context.Context, key string, loc Location) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE storage_key = $1 AND storage_location = $2 AND deleted_at IS NULL
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, key, string(locationOrDefault(loc))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns documents newest first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE deleted_at IS NULL
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByLocation returns every live document stored in loc.
func (r *PGRepo) ListByLocation(ctx context.Context, loc Location) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE storage_location = $1 AND deleted_at IS NULL
ORDER BY created_at DESC, id`
	rows, err := r.DB.QueryContext(ctx, query, string(loc))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// UpdateFile rewrites the file association of a document.
func (r *PGRepo) UpdateFile(ctx context.Context, id string, ref FileRef) error {
	const query = `
UPDATE documents
SET storage_key = $2,
    storage_location = $3,
    checksum = $4,
    size_bytes = COALESCE(NULLIF($5::bigint, 0), size_bytes),
    updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, id, ref.Key, string(ref.Location), nullString(ref.Checksum), ref.SizeBytes)
	if err != nil {
		return err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var location string
	var checksum sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.PageCount,
		&doc.StorageKey,
		&location,
		&checksum,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Location = Location(location)
	if checksum.Valid {
		doc.Checksum = checksum.String
	}
	return doc, nil
}

func collect(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
