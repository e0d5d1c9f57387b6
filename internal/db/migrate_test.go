package db

import (
	"testing"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()

	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
	return database
}

func TestUpCreatesAllTables(t *testing.T) {
	database := openMigrated(t)

	tables := []string{"projects", "tasks", "time_entries", "invoices", "clients", "sync_queue", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := database.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestUpIsIdempotent(t *testing.T) {
	database := openMigrated(t)

	migrator := NewMigrator(database.DB)
	if err := migrator.Up(); err != nil {
		t.Fatalf("second Up() failed: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("CurrentVersion() = %d, want %d", version, LatestVersion())
	}
}

func TestFreshStoreStartsAtVersionZero(t *testing.T) {
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer database.Close()

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if version != 0 {
		t.Errorf("CurrentVersion() = %d, want 0 before Up()", version)
	}
}

func TestAppliedMigrationsRecordsHistory(t *testing.T) {
	database := openMigrated(t)

	migrator := NewMigrator(database.DB)
	applied, err := migrator.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations() failed: %v", err)
	}

	if len(applied) != len(migrations) {
		t.Fatalf("applied %d migrations, want %d", len(applied), len(migrations))
	}
	for i, mig := range applied {
		if mig.Version != migrations[i].Version {
			t.Errorf("applied[%d].Version = %d, want %d", i, mig.Version, migrations[i].Version)
		}
		if mig.Checksum == "" {
			t.Errorf("applied[%d] has empty checksum", i)
		}
	}
}
