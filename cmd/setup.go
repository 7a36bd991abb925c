package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/nsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// LoadConfig reads the --config file when it exists and applies the log level.
//
// A missing default config.toml is not an error; the embedded defaults are used.
func (r *Runner) LoadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, nil
}

// SetupDatabase writes a default config file if none exists, then creates the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)
	r.writePlain("Next: nsync jobs add --server http://host:port --playlist <name>\n")
	return nil
}

// SetupRollback reverts the newest schema migration of the configured database.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db := r.db
	if db == nil {
		opened, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer opened.Close()
		db = opened
	}

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}
	r.logger.Warn("rolled back schema migration", "version", version)
	return r.writePlain("✓ Rolled back to schema version %d\n", version)
}
