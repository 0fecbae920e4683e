package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGRepoCreateDefaultsLocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	doc := Document{
		ID:         "0d6f4b52-8f0e-4f6e-9d52-5b0c1c7b0d11",
		Title:      "Minutes",
		FileName:   "minutes.pdf",
		MimeType:   "application/pdf",
		SizeBytes:  10,
		PageCount:  2,
		StorageKey: "1_abc_minutes.pdf",
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.Title,
			doc.FileName,
			doc.MimeType,
			doc.SizeBytes,
			doc.PageCount,
			doc.StorageKey,
			"protected",
			sql.NullString{},
			doc.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("INSERT INTO documents").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_documents_file"})

	repo := &PGRepo{DB: db}
	doc := Document{ID: "0d6f4b52-8f0e-4f6e-9d52-5b0c1c7b0d11", StorageKey: "shared.pdf", Location: LocationLegacy}
	if err := repo.Create(context.Background(), doc); !errors.Is(err, ErrFileInUse) {
		t.Fatalf("expected ErrFileInUse, got %v", err)
	}
}

func TestPGRepoGetByStorageKeyMapsNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE storage_key").
		WithArgs("shared.pdf", "legacy").
		WillReturnError(sql.ErrNoRows)

	repo := &PGRepo{DB: db}
	if _, err := repo.GetByStorageKey(context.Background(), "shared.pdf", LocationLegacy); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDMapsNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := &PGRepo{DB: db}
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListByLocationScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "title", "file_name", "mime_type", "size_bytes", "page_count",
		"storage_key", "storage_location", "checksum", "created_at", "updated_at",
	}).
		AddRow("d1", "Handbook", "handbook.pdf", "application/pdf", int64(2048), 0, "2023/handbook.pdf", "legacy", nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE storage_location").
		WithArgs("legacy").
		WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	docs, err := repo.ListByLocation(context.Background(), LocationLegacy)
	if err != nil {
		t.Fatalf("ListByLocation: %v", err)
	}
	if len(docs) != 1 || docs[0].Location != LocationLegacy || docs[0].Checksum != "" {
		t.Fatalf("unexpected docs %+v", docs)
	}
}

func TestPGRepoUpdateFileMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE documents").
		WithArgs("d1", "new-key", "protected", sql.NullString{String: "abc", Valid: true}, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := &PGRepo{DB: db}
	err = repo.UpdateFile(context.Background(), "d1", FileRef{Key: "new-key", Location: LocationProtected, Checksum: "abc"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
