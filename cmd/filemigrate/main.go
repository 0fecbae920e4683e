package main

// Move legacy documents into the protected store:
//   go run ./cmd/filemigrate --dry-run
//   go run ./cmd/filemigrate --document <id> [--dry-run]

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"protected-docs/internal/bootstrap"
	"protected-docs/internal/filestore"
	"protected-docs/internal/shared/config"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dryRun      bool
		concurrency int
		documentID  string
	)

	cfg := config.Load()

	flagSet := pflag.NewFlagSet("filemigrate", pflag.ContinueOnError)
	flagSet.BoolVar(&dryRun, "dry-run", false, "report what would move without copying")
	flagSet.IntVar(&concurrency, "concurrency", cfg.MigrationConcurrency, "documents migrated in parallel")
	flagSet.StringVar(&documentID, "document", "", "migrate a single document by id")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	if concurrency > 0 {
		app.FileStore.Concurrency = concurrency
	}

	return migrate(ctx, app.FileStore, documentID, dryRun, os.Stdout)
}

func migrate(ctx context.Context, svc *filestore.Service, documentID string, dryRun bool, out io.Writer) error {
	opts := filestore.MigrateOptions{DryRun: dryRun}
	if documentID != "" {
		result, err := svc.Migrate(ctx, documentID, opts)
		printJSON(out, result)
		return err
	}

	report, err := svc.MigrateAll(ctx, opts)
	printJSON(out, report)
	if errors.Is(err, filestore.ErrPartialMigration) {
		return fmt.Errorf("%d of %d documents failed", report.Failed, len(report.Results))
	}
	return err
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
