package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/ferrovax/crate/internal/shared"
)

// SetupDatabase initializes the configured database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	return r.writePlain("Database ready at %s\n", path)
}

// SetupConfig writes the starter configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config written", "path", path)
	return r.writePlain("Wrote starter config to %s; edit library.music_dir before scanning\n", path)
}
