// Package sqlite persists action history and bot account credentials.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ericfisherdev/prpilot/internal/logging"
)

// DB holds a single-connection writer and a small reader pool over the same
// WAL-mode database file.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// pragmas applied to every connection. WAL is added for file databases only.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

// NewDB opens dbPath with WAL mode, a busy timeout, synchronous NORMAL and
// foreign keys enabled.
func NewDB(dbPath string) (*DB, error) {
	return openDSN("file:"+dbPath+"?_pragma=journal_mode(WAL)&"+pragmas, dbPath)
}

// openDSN opens the writer and reader pools on dsn. path is what Path reports.
func openDSN(dsn, path string) (*DB, error) {
	writer, err := openPool(dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	reader, err := openPool(dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Open opens dbPath and applies pending migrations.
func Open(dbPath string) (*DB, error) {
	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	version, err := RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Named("sqlite").Debug("schema ready", "path", dbPath, "version", version)
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the reader pool, then the writer, and returns every error.
func (db *DB) Close() error {
	var errs []error
	if err := db.Reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}

// timeLayouts lists the formats the sqlite driver and CURRENT_TIMESTAMP
// produce for DATETIME columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
