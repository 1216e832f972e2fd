package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/cardsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the starter config file. Refuses to overwrite an existing one.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlain("Fill in your Yoto client id and Spotify credentials, then run 'cardsync auth yoto'.\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.reloadConfig(configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.reloadConfig(configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	_, db, err := r.openStore()
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
