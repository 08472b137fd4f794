// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "pretty",
		Usage: "Pretty-print output",
		Value: true,
	}
}

// setupCommand handles setup operations for configuration and the run-history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the run-history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// checkCommand verifies configuration, credentials and access to both stores.
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "check",
		Aliases: []string{"doctor"},
		Usage:   "Check configuration, credentials and connectivity without writing anything",
		Action:  r.Check,
	}
}

// migrateCommand handles catalog migration runs.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Copy the album catalog into the destination spreadsheet",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a full migration and reconcile the result",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "Delete and recreate destination tables instead of clearing them",
					},
					&cli.BoolFlag{
						Name:  "no-history",
						Usage: "Do not record the run in the run-history database",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the spreadsheet in a browser when the run succeeds",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.MigrateRun,
			},
			{
				Name:  "verify",
				Usage: "Reconcile the destination against live source counts",
				Flags: []cli.Flag{
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.MigrateVerify,
			},
		},
	}
}

// runsCommand browses recorded migration runs.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "runs",
		Aliases: []string{"history"},
		Usage:   "Browse recorded migration runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status (pending, running, succeeded, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.RunsList,
			},
			{
				Name:  "show",
				Usage: "Show one run with its sample mismatches (latest when no ID is given)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.RunsShow,
			},
		},
	}
}

// exportCommand writes transformed rows to local files.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export transformed rows without touching the destination",
		Commands: []*cli.Command{
			{
				Name:  "csv",
				Usage: "Write one CSV file per table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: destination.output_dir)",
					},
				},
				Action: r.ExportCSV,
			},
		},
	}
}

// uiCommand returns the top-level TUI command for an interactive migration run.
func uiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ui",
		Aliases: []string{"tui", "interactive"},
		Usage:   "Launch interactive TUI for a migration run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File receiving logs while the TUI owns the terminal",
				Value: "albumsheets-ui.log",
			},
		},
		Action: r.UI,
	}
}

// serveCommand returns the command exposing run history and metrics over HTTP.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve run history and the latest run's Prometheus metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to metrics.listen_addr)",
			},
		},
		Action: r.Serve,
	}
}
