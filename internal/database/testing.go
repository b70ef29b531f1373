package database

import (
	"testing"

	"github.com/agora-platform/agora-api/internal/migration"
)

// NewTestDB opens an in-memory SQLite database with the full schema applied.
// The database is closed when the test finishes.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	// The dialect pins the pool to a single connection, so :memory: keeps
	// its data for the lifetime of the test.
	db, err := Open(NewSQLiteDialect(), ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migration.Run(db.Pool(), "sqlite3"); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
