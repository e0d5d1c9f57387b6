// Package db provides the embedded SQLite store backing the offline data layer.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBFileName is the SQLite file created inside the data directory.
const DBFileName = "bizkeeper.db"

// DB wraps sql.DB with bizkeeper-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the local SQLite database inside dataDir, creating the
// directory and file on first use. The database is opened with:
//   - WAL mode for concurrent reads during writes
//   - foreign key constraints enabled
//   - a single writer connection (SQLite does not support multiple writers)
//
// No network access ever occurs in this package.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)

	// Open database with modernc.org/sqlite (pure Go, no CGO)
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
