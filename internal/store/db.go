// Package store provides the local persistent store: business records,
// single-key settings, and the durable sync queue.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB with ShopLedger-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the ShopLedger SQLite database. The database is opened
// with WAL mode for concurrent reads and foreign key constraints
// enabled, and the schema is migrated in place.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "shopledger.db")

	// modernc.org/sqlite is pure Go, no CGO
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// migrate creates the schema if it does not exist yet.
func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS records (
			entity     TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (entity, id)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT NOT NULL UNIQUE,
			action       TEXT NOT NULL,
			entity       TEXT NOT NULL,
			payload      TEXT NOT NULL,
			attempts     INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL,
			last_attempt INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_entity ON records(entity)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
