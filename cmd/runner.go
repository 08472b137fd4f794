package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/repositories"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Source, destination and run store are built from the loaded configuration on demand unless
// they were injected through [RunnerOpts].
type Runner struct {
	config      *shared.Config
	configFixed bool
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	source      services.Source
	destination services.Destination
	store       *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Source      services.Source
	Destination services.Destination
	Store       *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configFixed := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:      opts.Config,
		configFixed: configFixed,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		source:      opts.Source,
		destination: opts.Destination,
		store:       opts.Store,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "albumsheets",
		Usage:   "Migrate an album catalog from Postgres/Supabase into Google Sheets",
		Version: "0.4.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "PostgREST API key (overrides source.api_key)",
				Sources: cli.EnvVars("ALBUMSHEETS_SOURCE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "Postgres connection string (overrides source.dsn)",
				Sources: cli.EnvVars("ALBUMSHEETS_SOURCE_DSN"),
			},
			&cli.StringFlag{
				Name:    "credentials-file",
				Usage:   "Service-account key file (overrides destination.credentials_file)",
				Sources: cli.EnvVars("ALBUMSHEETS_CREDENTIALS_FILE"),
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, checkCommand, migrateCommand, runsCommand, exportCommand, uiCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration and applies flag and environment overrides.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if !r.configFixed {
		path := cmd.String("config")
		config, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			r.config = config
			r.logger.Debug("loaded config", "path", path)
		case errors.Is(err, shared.ErrMissingConfig):
			r.logger.Debug("config file not found, using defaults", "path", path)
		default:
			return ctx, err
		}
	}

	if v := cmd.String("api-key"); v != "" {
		r.config.Source.APIKey = v
	}
	if v := cmd.String("dsn"); v != "" {
		r.config.Source.DSN = v
	}
	if v := cmd.String("credentials-file"); v != "" {
		r.config.Destination.CredentialsFile = v
	}
	return ctx, nil
}

// openSource returns the configured source and a function releasing it.
func (r *Runner) openSource() (services.Source, func(), error) {
	if r.source != nil {
		return r.source, func() {}, nil
	}

	cfg := r.config.Source
	logger := shared.WithLogger(r.logger, "source", cfg.Kind)

	switch cfg.Kind {
	case shared.SourcePostgREST:
		src := services.NewPostgRESTSource(services.PostgRESTOptions{
			BaseURL:  cfg.URL,
			APIKey:   cfg.APIKey,
			Table:    cfg.PrimaryTable,
			OrderKey: cfg.OrderKey,
			Timeout:  cfg.Timeout.Duration,
			Client:   r.httpClient,
			Logger:   logger,
		})
		return src, func() {}, nil
	case shared.SourcePostgres:
		src, err := services.OpenPostgresSource(cfg.DSN, cfg.PrimaryTable, cfg.OrderKey, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrConnection, err)
		}
		return src, func() { src.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown source kind %q", shared.ErrInvalidConfig, cfg.Kind)
	}
}

// openDestination returns the configured destination.
func (r *Runner) openDestination(ctx context.Context) (services.Destination, error) {
	if r.destination != nil {
		return r.destination, nil
	}

	cfg := r.config.Destination
	logger := shared.WithLogger(r.logger, "destination", cfg.Kind)

	switch cfg.Kind {
	case shared.DestinationSheets:
		key, err := shared.ReadServiceAccountKey(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return services.NewSheetsDestination(ctx, services.SheetsOptions{
			SpreadsheetID:   cfg.SpreadsheetID,
			CredentialsJSON: key.Raw,
			FormatHeader:    cfg.FormatHeader,
			Logger:          logger,
		})
	case shared.DestinationCSV:
		return services.NewCSVDestination(cfg.OutputDir, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown destination kind %q", shared.ErrInvalidConfig, cfg.Kind)
	}
}

// openRuns returns the run-history repository and a function releasing its database.
func (r *Runner) openRuns() (*repositories.RunRepository, func(), error) {
	if r.store != nil {
		return repositories.NewRunRepository(r.store), func() {}, nil
	}

	db, err := shared.OpenRunStore(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return repositories.NewRunRepository(db), func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
