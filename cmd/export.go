package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/tasks"
)

// ExportCSV runs the migration pipeline into a directory of CSV files instead of the destination.
//
// Paging, transformation and reconciliation are the same as for a live run; pacing delays are
// dropped since nothing remote is written.
func (r *Runner) ExportCSV(ctx context.Context, cmd *cli.Command) error {
	opts, err := tasks.OptionsFromConfig(r.config)
	if err != nil {
		return err
	}
	opts.ChunkDelay = 0
	opts.PageDelay = 0
	opts.RetryBackoff = 0
	opts.Recreate = true

	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Destination.OutputDir
	}

	src, closeSrc, err := r.openSource()
	if err != nil {
		return err
	}
	defer closeSrc()

	dest := services.NewCSVDestination(dir, r.logger)
	result, err := tasks.NewEngine(src, dest, opts, r.logger).Run(ctx, nil)
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d rows\n", result.Counters.Written)
	for _, table := range []string{opts.PrimaryTable, opts.AuxTable} {
		r.writePlain("  %s\n", filepath.Join(dir, table+".csv"))
	}
	if !result.Verified {
		return fmt.Errorf("export incomplete: %s", result.Error)
	}
	return nil
}
