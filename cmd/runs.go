package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/server"
)

// RunsList lists recorded runs, newest first.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	runs, closeRuns, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeRuns()

	list, err := runs.List(map[string]any{
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]server.RunView, len(list))
		for i, run := range list {
			views[i] = server.NewRunView(run)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(list) == 0 {
		r.writePlain("No runs recorded\n")
		return nil
	}

	for _, run := range list {
		verdict := "✗"
		if run.Verified() {
			verdict = "✓"
		}
		started := "-"
		if run.StartedAt() != nil {
			started = run.StartedAt().Local().Format("2006-01-02 15:04")
		}
		r.writePlain("%s #%-4d %s  %-10s %s → %s  %d/%d rows  %s\n",
			verdict, run.Sequence(), started, run.Status(), run.Source(), run.Destination(),
			run.ActualPrimary(), run.ExpectedPrimary(), run.ID())
	}
	return nil
}

// RunsShow prints one run with its counters and sample mismatches.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	runs, closeRuns, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeRuns()

	var run *models.Run
	if id := cmd.StringArg("id"); id != "" {
		run, err = runs.Get(id)
	} else {
		run, err = runs.Latest()
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(server.NewRunView(run), cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d", run.Sequence()))
	r.writePlain("ID: %s\n", run.ID())
	r.writePlain("Status: %s (%s)\n", run.Status(), run.FinalState())
	r.writePlain("Source: %s\n", run.Source())
	r.writePlain("Destination: %s\n", run.Destination())
	if run.StartedAt() != nil {
		r.writePlain("Started: %s\n", run.StartedAt().Local().Format(time.RFC3339))
	}
	if d := run.Duration(); d > 0 {
		r.writePlain("Duration: %s\n", d.Round(time.Millisecond))
	}
	r.writePlain("Rows: %d/%d primary, %d/%d history\n",
		run.ActualPrimary(), run.ExpectedPrimary(), run.ActualAux(), run.ExpectedAux())
	r.writePlain("Fetched: %d, written: %d, truncated: %d, failed: %d, skipped pages: %d, unfetched: %d\n",
		run.Fetched(), run.Written(), run.Truncated(), run.Failed(), run.PagesSkipped(), run.Unfetched())
	r.writePlain("Verified: %v\n", run.Verified())
	if run.ErrorMessage() != "" {
		r.writePlain("Error: %s\n", run.ErrorMessage())
	}
	r.printMismatches(run.Mismatches())
	return nil
}
