package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"protected-docs/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const requestColumns = `id, document_id, requester_name, requester_email, status, secure_hash, created_at, updated_at`

// Create inserts a new access request.
func (r *PGRepo) Create(ctx context.Context, req AccessRequest) error {
	const query = `
INSERT INTO access_requests (
    id,
    document_id,
    requester_name,
    requester_email,
    status,
    secure_hash,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		req.ID,
		req.DocumentID,
		req.RequesterName,
		req.RequesterEmail,
		string(req.Status),
		nullString(req.SecureHash),
		req.CreatedAt,
	)
	return err
}

// GetByID fetches an access request.
func (r *PGRepo) GetByID(ctx context.Context, id string) (AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessRequest{}, ErrNotFound
		}
		return AccessRequest{}, err
	}
	return req, nil
}

// List returns requests newest first, optionally filtered by status and document.
func (r *PGRepo) List(ctx context.Context, filter Filter, limit, offset int) ([]AccessRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		where = append(where, fmt.Sprintf("document_id = $%d", len(args)))
	}
	query := `SELECT ` + requestColumns + ` FROM access_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AccessRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Update locks the row, applies mutate and writes status, hash and updated_at in one statement.
func (r *PGRepo) Update(ctx context.Context, id string, mutate func(*AccessRequest) error) (AccessRequest, error) {
	var out AccessRequest
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1 FOR UPDATE`
		current, err := scanRequest(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		next := current
		if err := mutate(&next); err != nil {
			return err
		}

		const update = `
UPDATE access_requests
SET status = $2, secure_hash = $3, updated_at = $4
WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, string(next.Status), nullString(next.SecureHash), next.UpdatedAt); err != nil {
			return err
		}

		out = current
		out.Status = next.Status
		out.SecureHash = next.SecureHash
		out.UpdatedAt = next.UpdatedAt
		return nil
	})
	if err != nil {
		return AccessRequest{}, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (AccessRequest, error) {
	var req AccessRequest
	var status string
	var hash sql.NullString
	if err := row.Scan(
		&req.ID,
		&req.DocumentID,
		&req.RequesterName,
		&req.RequesterEmail,
		&status,
		&hash,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return AccessRequest{}, err
	}
	req.Status = Status(status)
	if hash.Valid {
		req.SecureHash = hash.String
	}
	return req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
