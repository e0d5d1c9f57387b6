package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesDataDirAndFile(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	database, err := Open(dataDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(filepath.Join(dataDir, DBFileName)); err != nil {
		t.Errorf("expected database file to exist: %v", err)
	}

	if err := database.Ping(); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer database.Close()

	var enabled int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("failed to query foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Error("expected foreign keys to be enabled")
	}
}
