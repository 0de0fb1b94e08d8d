package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase prepares the configured document store.
//
// A config file is created from the template when none exists. SQLite databases are
// migrated; MongoDB gets its unique indexes.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if r.config == nil {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	switch config.Database.Driver {
	case shared.DriverSQLite:
		r.logger.Info("initializing database", "path", config.Database.Path)
		db, err := openSQLite(config.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		r.logger.Infof("setup complete for database: %v", config.Database.Path)
	case shared.DriverMongoDB:
		r.logger.Info("ensuring mongodb indexes", "database", config.Database.Name)
		stores, err := repositories.NewMongoStores(ctx, config.Database.URI, config.Database.Name)
		if err != nil {
			return err
		}
		defer stores.Close(context.WithoutCancel(ctx))
		r.logger.Infof("setup complete for mongodb database: %v", config.Database.Name)
	default:
		return fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, config.Database.Driver)
	}
	return nil
}

// SetupRollback reverts the most recent SQLite migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.sqliteConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Info("rolled back latest migration", "path", config.Database.Path)
	return nil
}

// SetupStatus prints every migration and whether it has been applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.sqliteConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(states, true)
	}

	r.writePlainHeader("Migrations: " + config.Database.Path)
	for _, s := range states {
		status := "pending"
		if s.Applied {
			status = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		r.writePlain("%04d  %-24s %s\n", s.Version, s.Name, status)
	}
	return nil
}

func (r *Runner) sqliteConfig(cmd *cli.Command) (*shared.Config, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if config.Database.Driver != shared.DriverSQLite {
		return nil, fmt.Errorf("%w: migrations only apply to the %s driver", shared.ErrInvalidArgument, shared.DriverSQLite)
	}
	return config, nil
}
