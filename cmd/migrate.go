package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/formatter"
	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
	"github.com/albumvault/albumsheets/internal/tasks"
)

// MigrateRun runs a full migration and prints the verdict.
//
// A run that is not verified exits with an error so scripts can rely on the exit status.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	opts, err := tasks.OptionsFromConfig(r.config)
	if err != nil {
		return err
	}
	if cmd.Bool("recreate") {
		opts.Recreate = true
	}

	src, closeSrc, err := r.openSource()
	if err != nil {
		return err
	}
	defer closeSrc()

	dest, err := r.openDestination(ctx)
	if err != nil {
		return err
	}

	engine := tasks.NewEngine(src, dest, opts, r.logger)
	if !cmd.Bool("no-history") {
		runs, closeRuns, err := r.openRuns()
		if err != nil {
			r.logger.Warn("run history unavailable", "error", err)
		} else {
			defer closeRuns()
			engine.WithRecorder(runs)
		}
	}

	asJSON := cmd.Bool("json")
	if !asJSON {
		r.writePlain("Migrating %s → %s\n", src.Name(), dest.Name())
		r.writePlain("Tables: %s, %s\n\n", opts.PrimaryTable, opts.AuxTable)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !asJSON {
				r.printProgress(update)
			}
		}
	}()

	result, runErr := engine.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if n := engine.DroppedUpdates(); n > 0 {
		r.logger.Debug("progress updates dropped", "count", n)
		if !asJSON {
			r.writePlain("(%d progress updates not shown)\n", n)
		}
	}

	if path := r.config.Metrics.TextfilePath; path != "" && result != nil {
		if err := tasks.WriteMetrics(path, result); err != nil {
			r.logger.Warn("failed to write metrics", "path", path, "error", err)
		} else {
			r.logger.Debug("wrote metrics", "path", path)
		}
	}

	if asJSON {
		if err := r.writeJSON(result, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.printResult(result)
	}

	if runErr != nil {
		return runErr
	}
	if result.Cancelled {
		return fmt.Errorf("migration cancelled: %w", context.Canceled)
	}
	if !result.Verified {
		return fmt.Errorf("%w: destination does not match the source", shared.ErrReconciliation)
	}

	if cmd.Bool("open") && r.config.Destination.Kind == shared.DestinationSheets {
		if err := shared.OpenBrowser(shared.SpreadsheetURL(r.config.Destination.SpreadsheetID)); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
	return nil
}

// MigrateVerify reconciles the destination against live source counts without writing anything.
func (r *Runner) MigrateVerify(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	opts, err := tasks.OptionsFromConfig(r.config)
	if err != nil {
		return err
	}

	src, closeSrc, err := r.openSource()
	if err != nil {
		return err
	}
	defer closeSrc()

	dest, err := r.openDestination(ctx)
	if err != nil {
		return err
	}

	expected, err := src.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count: %v", shared.ErrConnection, err)
	}
	aux, err := src.FetchAll(ctx, opts.SourceAuxTable)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %v", shared.ErrConnection, opts.SourceAuxTable, err)
	}

	var sample []models.Row
	if opts.SampleSize > 0 {
		records, err := src.FetchRange(ctx, 0, opts.SampleSize, opts.OrderKey)
		if err != nil {
			r.logger.Warn("skipping sample check", "error", err)
		} else {
			transformer := formatter.NewTransformer(formatter.NewEncoder(opts.ElementCaps, &atomic.Int64{}), opts.CellLimit)
			sample = transformer.TransformAll(opts.PrimarySchema, records)
		}
	}

	reconciler := tasks.NewReconciler(dest, tasks.ReconcilerOptions{
		PrimaryTable: opts.PrimaryTable,
		AuxTable:     opts.AuxTable,
		Schema:       opts.PrimarySchema,
		SampleSize:   opts.SampleSize,
	}, r.logger)
	rec := reconciler.Verify(ctx, expected, len(aux), sample)

	if cmd.Bool("json") {
		if err := r.writeJSON(rec, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.printReconciliation(&rec, opts.PrimaryTable, opts.AuxTable)
	}

	if rec.Err != nil {
		return rec.Err
	}
	if !rec.Match {
		return fmt.Errorf("%w: destination does not match the source", shared.ErrReconciliation)
	}
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Transferring:
		r.writePlain("   %s\n", update.Message)
	case tasks.Succeeded, tasks.Failed:
		r.writePlain("\n%s\n", update.Message)
	default:
		r.writePlain("• %s\n", update.Message)
	}
}

func (r *Runner) printResult(result *tasks.Result) {
	if result == nil {
		return
	}

	r.writePlain("\n")
	switch {
	case result.Verified:
		r.writePlainHeader("Migration Verified")
	case result.Cancelled:
		r.writePlainHeader("Migration Cancelled")
	default:
		r.writePlainHeader("Migration Failed")
	}

	c := result.Counters
	r.writePlain("Run: %s\n", result.RunID)
	r.writePlain("Final state: %s\n", result.State)
	r.writePlain("Duration: %s\n", result.Duration.Round(time.Millisecond))
	r.writePlain("Fetched: %d, written: %d, failed: %d\n", c.Fetched, c.Written, c.Failed)
	if c.Truncated > 0 {
		r.writePlain("Truncated values: %d\n", c.Truncated)
	}
	if c.PagesSkipped > 0 {
		r.writePlain("Skipped pages: %d (%d records not fetched)\n", c.PagesSkipped, c.Unfetched)
	}
	if result.Reconciliation != nil {
		r.writePlain("Rows: %d/%d primary, %d/%d history\n",
			result.Reconciliation.ActualPrimary, result.Reconciliation.ExpectedPrimary,
			result.Reconciliation.ActualAux, result.Reconciliation.ExpectedAux)
		r.printMismatches(result.Reconciliation.Mismatches)
	}
	if result.Error != "" {
		r.writePlain("Error: %s\n", result.Error)
	}
}

func (r *Runner) printReconciliation(rec *tasks.Reconciliation, primary, aux string) {
	if rec.Match {
		r.writePlainHeader("Destination Matches Source")
	} else {
		r.writePlainHeader("Destination Does Not Match Source")
	}
	r.writePlain("%s: %d rows, expected %d\n", primary, rec.ActualPrimary, rec.ExpectedPrimary)
	r.writePlain("%s: %d rows, expected %d\n", aux, rec.ActualAux, rec.ExpectedAux)
	r.writePlain("Sample rows checked: %d\n", rec.SampleChecked)
	r.printMismatches(rec.Mismatches)
	if rec.Err != nil && !errors.Is(rec.Err, context.Canceled) {
		r.writePlain("Error: %v\n", rec.Err)
	}
}

func (r *Runner) printMismatches(mismatches []models.Mismatch) {
	if len(mismatches) == 0 {
		return
	}
	r.writePlain("\nSample mismatches:\n")
	for _, m := range mismatches {
		r.writePlain("  - row %d: expected %s %q, found %s %q\n", m.RowIndex, m.ExpectedID, m.ExpectedTitle, m.ActualID, m.ActualTitle)
	}
}
