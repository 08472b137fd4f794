package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/shared"
)

// SetupConfig writes the configuration template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Configuration template written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set source.url (or source.dsn) and destination.spreadsheet_id\n")
	r.writePlain("2. Export ALBUMSHEETS_SOURCE_API_KEY and ALBUMSHEETS_CREDENTIALS_FILE, or fill them in\n")
	r.writePlain("3. Run 'albumsheets check' to verify access\n")
	return nil
}

// SetupDatabase initializes the run-history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	db := r.store
	if db == nil {
		var err error
		if db, err = shared.NewDatabase(path); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()
		shared.ConfigureDatabase(db, r.config.Database)
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	versions := make([]int, 0, len(status))
	for v, applied := range status {
		if applied {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)

	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Database ready at %s (%d migrations applied: %v)\n", path, len(versions), versions)
	return nil
}
