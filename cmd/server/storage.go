package main

import (
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/config"
	"focusbeat/backend/internal/db"
	"focusbeat/backend/internal/store"
)

type storage struct {
	db    *sql.DB
	store store.Backend
}

func (s *storage) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openStorage opens the profiles database, applies pending migrations and
// opens the configured key/value backend.
func openStorage(cfg config.Config, logger hclog.Logger) (*storage, error) {
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	applied, err := db.RunMigrations(database, cfg.MigrationsDir)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "names", applied)
	}

	backend, err := store.Open(cfg.Store.Backend, cfg.Store.Path, database)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened", "backend", cfg.Store.Backend, "path", cfg.Store.Path)
	return &storage{db: database, store: backend}, nil
}
