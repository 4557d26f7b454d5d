package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestJournal opens a migrated run journal in t.TempDir() and registers
// cleanup.
func OpenTestJournal(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenJournal(filepath.Join(t.TempDir(), "journal", "dismap_runs.sqlite"))
	if err != nil {
		t.Fatalf("open test journal: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}
