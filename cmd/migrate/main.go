package main

import (
	"flag"
	"os"

	"focusbeat/backend/internal/config"
	"focusbeat/backend/internal/db"
	"focusbeat/backend/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "config file")
	flag.Parse()

	logger := logging.New("migrate", "info", "text", os.Stderr)
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	applied, err := db.RunMigrations(database, cfg.MigrationsDir)
	if err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	logger.Info("migrations applied successfully", "count", len(applied))
}
