package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/ytaudio/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// The config file named by --config is created from the template when it does not exist yet.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	if err := r.load(cmd); err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		r.config = shared.DefaultConfig()
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, dir := range []string{r.config.Storage.TempDir, r.config.Storage.BlobDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// ConfigInit writes the default configuration template to --config.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlain("wrote %s\n", path)
}

// ConfigShow prints the configuration after file and environment overrides are applied.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}
	if err := toml.NewEncoder(r.output).Encode(r.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// MigrateUp applies pending migrations.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	db, err := r.loadDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := shared.ApplyPendingMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) == 0 {
		return r.writePlain("%s is up to date\n", r.config.Database.Path)
	}
	for _, m := range applied {
		r.writePlain("applied %04d %s\n", m.Version, m.Name)
	}
	return nil
}

// MigrateRollback reverts the most recently applied migration.
func (r *Runner) MigrateRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.loadDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := shared.RollbackLatestMigration(db)
	if err != nil {
		return err
	}
	return r.writePlain("rolled back %04d %s\n", m.Version, m.Name)
}

// MigrateStatus lists every migration and when it was applied.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.loadDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("migrations: " + r.config.Database.Path)
	for _, s := range states {
		applied := "pending"
		if s.Applied() {
			applied = humanize.Time(*s.AppliedAt)
		}
		r.writePlain("%04d  %-20s %s\n", s.Version, s.Name, applied)
	}
	return nil
}

func (r *Runner) loadDatabase(cmd *cli.Command) (*sql.DB, error) {
	if err := r.load(cmd); err != nil {
		return nil, err
	}
	return r.openDatabase()
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}
