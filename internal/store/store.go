// Package store is the durable string-keyed key/value layer the engines
// persist through, the local equivalent of browser local storage.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Logical keys written by the engines.
const (
	KeyTimerSnapshot = "timer_snapshot"
	KeyDailyStats    = "daily_stats"
	KeyLastSession   = "last_session"
	KeyPreferences   = "preferences"
)

const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var ErrClosed = errors.New("store closed")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Backend is a Store that owns an underlying resource.
type Backend interface {
	Store
	Close() error
}

// Open builds the configured backend. db is only used by the sqlite backend
// and must already have the kv_entries migration applied.
func Open(backend, path string, db *sql.DB) (Backend, error) {
	switch backend {
	case BackendBolt:
		return OpenBolt(path)
	case BackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite store needs a database handle")
		}
		return NewSQLite(db), nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
