// Database schema migration management for the embedded store.
//
// The schema ships inside the binary as an ordered list of versioned
// migrations; opening a data directory written by an older build applies the
// pending versions before the store is touched.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents one applied schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migration is a schema version waiting to be applied.
type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered, append-only schema history. Never edit an
// entry after it has shipped; add a new version instead.
var migrations = []migration{
	{
		Version:     1,
		Description: "initial collections and sync queue",
		SQL: `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			synced INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			synced INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS time_entries (
			id TEXT PRIMARY KEY,
			synced INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			synced INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			synced INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sync_queue (
			local_seq INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL CHECK(op IN ('create', 'update', 'delete')),
			collection TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '',
			enqueued_at INTEGER NOT NULL,
			retries INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'failed')),
			last_error TEXT NOT NULL DEFAULT ''
		);
		`,
	},
	{
		Version:     2,
		Description: "sync queue drain and entity lookup indexes",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_sync_queue_status
			ON sync_queue(status, enqueued_at, local_seq);
		CREATE INDEX IF NOT EXISTS idx_sync_queue_entity
			ON sync_queue(collection, entity_id);

		CREATE INDEX IF NOT EXISTS idx_projects_synced ON projects(synced);
		CREATE INDEX IF NOT EXISTS idx_tasks_synced ON tasks(synced);
		CREATE INDEX IF NOT EXISTS idx_time_entries_synced ON time_entries(synced);
		CREATE INDEX IF NOT EXISTS idx_invoices_synced ON invoices(synced);
		CREATE INDEX IF NOT EXISTS idx_clients_synced ON clients(synced);
		`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version, 0 for a fresh store.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// AppliedMigrations returns all applied migrations in version order.
func (m *Migrator) AppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}

// Up applies all pending migrations. It is safe to call on every startup;
// already-applied versions are verified against their recorded checksum and
// skipped.
func (m *Migrator) Up() error {
	applied, err := m.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedByVersion := make(map[int]Migration, len(applied))
	for _, mig := range applied {
		appliedByVersion[mig.Version] = mig
	}

	for _, mig := range migrations {
		sum := checksum(mig.SQL)

		if prev, ok := appliedByVersion[mig.Version]; ok {
			if prev.Checksum != sum {
				return fmt.Errorf("migration %d checksum mismatch: applied schema differs from this build", mig.Version)
			}
			continue
		}

		if err := m.apply(mig, sum); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Description, err)
		}
	}

	return nil
}

// apply runs one migration and records it, both inside a single transaction
// so a crash mid-migration leaves the store at the previous version.
func (m *Migrator) apply(mig migration, sum string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
		mig.Version, time.Now().Unix(), mig.Description, sum,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// LatestVersion returns the highest schema version this build knows about.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

func checksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}
