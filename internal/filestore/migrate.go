package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"protected-docs/internal/documents"
	"protected-docs/internal/shared/lock"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/storage/object"
	"protected-docs/internal/shared/telemetry"
)

// Outcome is the per-file result of a migration.
type Outcome string

const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomeDryRun   Outcome = "dry_run"
)

// Result records what happened to one document's file.
type Result struct {
	DocumentID string  `json:"documentId"`
	Outcome    Outcome `json:"outcome"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to,omitempty"`
	Error      string  `json:"error,omitempty"`
	Warning    string  `json:"warning,omitempty"`
}

// Report summarizes a batch migration.
type Report struct {
	Migrated int      `json:"migrated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	DryRun   bool     `json:"dryRun"`
	Results  []Result `json:"results"`
}

// MigrateOptions controls Migrate and MigrateAll.
type MigrateOptions struct {
	DryRun bool
}

// Migrate moves one document's file from the legacy root into the protected root.
// A document already in the protected root is skipped. With opts.DryRun the legacy
// file is only checked and nothing is copied, relinked or deleted.
func (s *Service) Migrate(ctx context.Context, docID string, opts MigrateOptions) (Result, error) {
	if _, err := s.document(ctx, docID); err != nil {
		return Result{}, err
	}
	if !opts.DryRun {
		if err := s.ensureProtected(ctx); err != nil {
			return Result{}, err
		}
	}
	res := s.migrateOne(ctx, docID, opts.DryRun)
	metrics.ObserveMigration(string(res.Outcome))
	if res.Outcome == OutcomeFailed {
		return res, fmt.Errorf("%w: %s", ErrStorage, res.Error)
	}
	return res, nil
}

// MigrateAll migrates every legacy document. Only one batch runs at a time across instances.
// Failures are recorded per file and never stop the batch; if any file failed the report is
// returned together with ErrPartialMigration.
func (s *Service) MigrateAll(ctx context.Context, opts MigrateOptions) (Report, error) {
	release, err := s.Locker.Acquire(ctx, migrationLockName, s.lockTTL())
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return Report{}, ErrMigrationInProgress
		}
		return Report{}, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			telemetry.Warn("files.migrate.unlock_failed", map[string]any{"error": err})
		}
	}()

	if !opts.DryRun {
		if err := s.ensureProtected(ctx); err != nil {
			return Report{}, err
		}
	}

	pending, err := s.Docs.ListByLocation(ctx, documents.LocationLegacy)
	if err != nil {
		return Report{}, err
	}

	results := make([]Result, len(pending))
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for i, doc := range pending {
		g.Go(func() error {
			results[i] = s.migrateOne(ctx, doc.ID, opts.DryRun)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{DryRun: opts.DryRun, Results: results}
	for _, res := range results {
		metrics.ObserveMigration(string(res.Outcome))
		switch res.Outcome {
		case OutcomeMigrated:
			report.Migrated++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}
	telemetry.Info("files.migrate.complete", map[string]any{
		"migrated": report.Migrated,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"dry_run":  opts.DryRun,
		"total":    len(results),
	})
	if report.Failed > 0 {
		return report, ErrPartialMigration
	}
	return report, nil
}

func (s *Service) migrateOne(ctx context.Context, docID string, dryRun bool) Result {
	res := Result{DocumentID: docID}

	release, err := s.Locker.Acquire(ctx, migrationLockName+":"+docID, s.lockTTL())
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			res.Outcome = OutcomeSkipped
			res.Warning = "migration of this document is already running"
			return res
		}
		return failed(res, fmt.Errorf("lock document: %w", err))
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	// Re-read under the lock so a concurrent run that already finished is seen.
	doc, err := s.Docs.GetByID(ctx, docID)
	if err != nil {
		return failed(res, err)
	}
	res.From = doc.StorageKey
	if doc.Location == documents.LocationProtected {
		res.Outcome = OutcomeSkipped
		res.To = doc.StorageKey
		return res
	}

	if s.Legacy == nil {
		return failed(res, errors.New("legacy root not configured"))
	}
	if _, err := s.Legacy.Stat(ctx, doc.StorageKey); err != nil {
		return failed(res, fmt.Errorf("stat legacy file: %w", err))
	}
	if dryRun {
		res.Outcome = OutcomeDryRun
		return res
	}

	ref, err := s.copyToProtected(ctx, doc)
	if err != nil {
		return failed(res, err)
	}
	res.To = ref.Key

	if err := s.Docs.UpdateFile(ctx, doc.ID, ref); err != nil {
		_ = s.Protected.Delete(ctx, ref.Key)
		return failed(res, fmt.Errorf("update document: %w", err))
	}

	if err := s.Legacy.Delete(ctx, doc.StorageKey); err != nil {
		res.Warning = "legacy copy not removed: " + err.Error()
		telemetry.Warn("files.migrate.legacy_delete_failed", map[string]any{
			"document_id": doc.ID,
			"key":         doc.StorageKey,
			"error":       err,
		})
	}
	res.Outcome = OutcomeMigrated
	telemetry.Info("files.migrate", map[string]any{
		"document_id": doc.ID,
		"from":        res.From,
		"to":          res.To,
	})
	return res
}

// copyToProtected copies the legacy file under a fresh key and verifies the copy by re-reading it.
func (s *Service) copyToProtected(ctx context.Context, doc documents.Document) (documents.FileRef, error) {
	src, err := s.Legacy.Open(ctx, doc.StorageKey)
	if err != nil {
		return documents.FileRef{}, fmt.Errorf("open legacy file: %w", err)
	}
	defer src.Close()

	key, err := object.NewKey(fileNameFor(doc), s.now())
	if err != nil {
		return documents.FileRef{}, fmt.Errorf("build key: %w", err)
	}

	h := newHasher()
	size, err := s.Protected.SaveWithKey(ctx, key, doc.MimeType, io.TeeReader(src, h))
	if err != nil {
		return documents.FileRef{}, fmt.Errorf("copy to protected root: %w", err)
	}
	sum := formatChecksum(h)

	copied, copiedSize, err := checksumOf(ctx, s.Protected, key)
	if err != nil {
		_ = s.Protected.Delete(ctx, key)
		return documents.FileRef{}, fmt.Errorf("verify copy: %w", err)
	}
	if copied != sum || copiedSize != size {
		_ = s.Protected.Delete(ctx, key)
		return documents.FileRef{}, fmt.Errorf("verify copy: checksum mismatch")
	}
	if doc.Checksum != "" && doc.Checksum != sum {
		_ = s.Protected.Delete(ctx, key)
		return documents.FileRef{}, fmt.Errorf("legacy file does not match recorded checksum")
	}
	return documents.FileRef{Key: key, Location: documents.LocationProtected, Checksum: sum, SizeBytes: size}, nil
}

func failed(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Error = err.Error()
	telemetry.Error("files.migrate.failed", map[string]any{
		"document_id": res.DocumentID,
		"from":        res.From,
		"error":       err,
	})
	return res
}

func (s *Service) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return 4
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return defaultLockTTL
}
