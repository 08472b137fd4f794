package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/shared"
	"github.com/albumvault/albumsheets/internal/tasks"
	"github.com/albumvault/albumsheets/internal/ui"
)

// UI launches the interactive terminal UI for a migration run.
func (r *Runner) UI(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	opts, err := tasks.OptionsFromConfig(r.config)
	if err != nil {
		return err
	}

	// Redirect logs to a file to avoid interfering with TUI rendering
	logFile, err := os.OpenFile(cmd.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	r.logger = shared.NewLogger(logFile)

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

	var history ui.HistoryLister
	if runs, closeRuns, err := r.openRuns(); err != nil {
		r.logger.Warn("run history unavailable", "error", err)
	} else {
		defer closeRuns()
		engine.WithRecorder(runs)
		history = runs
	}

	model := ui.NewModel(ctx, engine, ui.RunInfo{
		Source:       src.Name(),
		Destination:  dest.Name(),
		PrimaryTable: opts.PrimaryTable,
		AuxTable:     opts.AuxTable,
		Recreate:     opts.Recreate,
	}, history)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
