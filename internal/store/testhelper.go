package store

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestStore opens an empty DuckDB store in t.TempDir() and registers
// cleanup. The store file sits in its own directory so sibling "CSV Data"
// paths are isolated per test.
func OpenTestStore(t *testing.T) *DuckStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gdb", "DisMAP.duckdb")
	s, err := Open(context.Background(), path, false)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// MustExec runs DDL/DML fixtures against the test store.
func MustExec(t *testing.T, s *DuckStore, stmts ...string) {
	t.Helper()
	for _, q := range stmts {
		if _, err := s.DB().ExecContext(context.Background(), q); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
}
