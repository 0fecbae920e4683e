package requests

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var columns = []string{"id", "document_id", "requester_name", "requester_email", "status", "secure_hash", "created_at", "updated_at"}

func TestPGRepoUpdateCommitsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM access_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("req-1", "doc-1", "Ada", "ada@example.com", "pending", nil, created, created))
	mock.ExpectExec("UPDATE access_requests").
		WithArgs("req-1", "accepted", sql.NullString{String: "abc", Valid: true}, updated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), "req-1", func(r *AccessRequest) error {
		r.Status = StatusAccepted
		r.SecureHash = "abc"
		r.UpdatedAt = updated
		r.RequesterEmail = "ignored@example.com"
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != StatusAccepted || got.SecureHash != "abc" || got.RequesterEmail != "ada@example.com" {
		t.Fatalf("unexpected result %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateRollsBackWhenMutateFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("req-1", "doc-1", "Ada", "ada@example.com", "accepted", "abc", created, created))
	mock.ExpectRollback()

	boom := errors.New("token source unavailable")
	_, err = (&PGRepo{DB: db}).Update(context.Background(), "req-1", func(*AccessRequest) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	_, err = (&PGRepo{DB: db}).Update(context.Background(), "missing", func(*AccessRequest) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if called {
		t.Fatalf("mutate must not run for a missing row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND document_id = $2 ORDER BY created_at DESC, id LIMIT $3 OFFSET $4")).
		WithArgs("pending", "doc-1", 100, 0).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("req-1", "doc-1", "Ada", "ada@example.com", "pending", nil, created, created))

	got, err := (&PGRepo{DB: db}).List(context.Background(), Filter{Status: StatusPending, DocumentID: "doc-1"}, 500, -1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].SecureHash != "" {
		t.Fatalf("unexpected rows %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateStoresNullHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO access_requests").
		WithArgs("req-1", "doc-1", "Ada", "ada@example.com", "pending", sql.NullString{}, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := AccessRequest{ID: "req-1", DocumentID: "doc-1", RequesterName: "Ada", RequesterEmail: "ada@example.com", Status: StatusPending, CreatedAt: now}
	if err := (&PGRepo{DB: db}).Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
