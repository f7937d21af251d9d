package sqlite

import (
	"net/url"
	"testing"
)

// setupTestDB returns a migrated in-memory database private to the test.
// The writer and reader pools share it through cache=shared, keyed by the
// escaped test name.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := "file:" + url.PathEscape(t.Name()) + "?mode=memory&cache=shared&" + pragmas
	db, err := openDSN(dsn, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}
