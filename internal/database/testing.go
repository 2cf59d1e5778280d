package database

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTest opens a migrated database in a per-test temporary directory and
// closes it when the test finishes.
func OpenTest(t testing.TB) *sql.DB {
	t.Helper()

	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "walkaround.db")})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
