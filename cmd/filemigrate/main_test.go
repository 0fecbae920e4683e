package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"protected-docs/internal/documents"
	"protected-docs/internal/filestore"
	"protected-docs/internal/shared/lock"
	"protected-docs/internal/shared/storage/object/local"
)

func newService(t *testing.T) (*filestore.Service, *local.Store, *documents.MemoryRepo) {
	t.Helper()
	legacy := local.New(t.TempDir())
	docs := documents.NewMemoryRepo()
	svc := &filestore.Service{
		Protected: local.New(t.TempDir()),
		Legacy:    legacy,
		Docs:      docs,
		Locker:    lock.NewMemoryLocker(),
	}
	return svc, legacy, docs
}

func seed(t *testing.T, legacy *local.Store, docs *documents.MemoryRepo, key string) documents.Document {
	t.Helper()
	ctx := context.Background()
	if _, err := legacy.SaveWithKey(ctx, key, "application/pdf", strings.NewReader("legacy body")); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	now := time.Now().UTC()
	doc := documents.Document{
		ID:         uuid.NewString(),
		Title:      key,
		FileName:   key,
		MimeType:   "application/pdf",
		StorageKey: key,
		Location:   documents.LocationLegacy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func TestMigrateSingleDocumentHonorsDryRun(t *testing.T) {
	svc, legacy, docs := newService(t)
	doc := seed(t, legacy, docs, "bylaws.pdf")
	ctx := context.Background()

	var out bytes.Buffer
	if err := migrate(ctx, svc, doc.ID, true, &out); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var res filestore.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if res.Outcome != filestore.OutcomeDryRun {
		t.Fatalf("expected dry_run outcome, got %+v", res)
	}
	stored, _ := docs.GetByID(ctx, doc.ID)
	if stored.Location != documents.LocationLegacy {
		t.Fatalf("dry run moved the document: %+v", stored)
	}
	if _, err := legacy.Stat(ctx, doc.StorageKey); err != nil {
		t.Fatalf("legacy file removed by dry run: %v", err)
	}

	out.Reset()
	if err := migrate(ctx, svc, doc.ID, false, &out); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	stored, _ = docs.GetByID(ctx, doc.ID)
	if stored.Location != documents.LocationProtected {
		t.Fatalf("expected document moved, got %+v", stored)
	}
}

func TestMigrateAllReportsFailures(t *testing.T) {
	svc, legacy, docs := newService(t)
	seed(t, legacy, docs, "ok.pdf")
	ctx := context.Background()
	now := time.Now().UTC()
	if err := docs.Create(ctx, documents.Document{
		ID:         uuid.NewString(),
		StorageKey: "missing.pdf",
		Location:   documents.LocationLegacy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var out bytes.Buffer
	err := migrate(ctx, svc, "", false, &out)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 documents failed") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if !strings.Contains(out.String(), `"migrated": 1`) {
		t.Fatalf("expected report on stdout, got %s", out.String())
	}
}
