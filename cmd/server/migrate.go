package main

import (
	"github.com/spf13/cobra"

	"focusbeat/backend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		applied, err := db.RunMigrations(database, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		logger.Info("migrations applied successfully", "count", len(applied), "names", applied)
		return nil
	},
}
