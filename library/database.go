package library

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// dialect builds parameterized SQL for the closed search enumerations.
var dialect = goqu.Dialect("sqlite3")

// Database provides the catalog, membership and loan ledger operations
// on top of a SQLite connection.
type Database struct {
	db  *sqlx.DB
	cfg Config

	// now is the clock used for borrow/due/return dates; tests override it.
	now func() time.Time
}

// NewDatabase opens (or creates) the SQLite database named by cfg,
// applies schema migrations, and returns the store handle.
func NewDatabase(cfg Config) (*Database, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", cfg.DBPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStoreUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, cfg: cfg, now: time.Now}, nil
}

// Close closes the underlying database.
func (d *Database) Close() error { return d.db.Close() }

// Config returns the policy the store was opened with.
func (d *Database) Config() Config { return d.cfg }

// today is the current date at midnight UTC. All loan dates are whole
// days; overdue arithmetic must not depend on the time of day.
func (d *Database) today() time.Time {
	t := d.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween reports a minus b in whole days. Both arguments are
// expected to be midnight-truncated.
func daysBetween(a, b time.Time) int {
	return int(a.Sub(b).Hours() / 24)
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin','user')),
            real_name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            status INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            last_login DATETIME
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            book_id INTEGER PRIMARY KEY AUTOINCREMENT,
            isbn TEXT NOT NULL DEFAULT '',
            title TEXT NOT NULL,
            author TEXT NOT NULL DEFAULT '',
            publisher TEXT NOT NULL DEFAULT '',
            publish_date TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            price REAL NOT NULL DEFAULT 0,
            total_copies INTEGER NOT NULL DEFAULT 0,
            available_copies INTEGER NOT NULL DEFAULT 0,
            CHECK (available_copies >= 0 AND available_copies <= total_copies)
        );`,
		// book_id carries no foreign key: returned records outlive their
		// book, since a title may be deleted once nothing is on loan.
		`CREATE TABLE IF NOT EXISTS borrowing_records (
            record_id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL REFERENCES users(user_id),
            borrow_date DATETIME NOT NULL,
            due_date DATETIME NOT NULL,
            return_date DATETIME,
            status TEXT NOT NULL DEFAULT 'borrowed' CHECK (status IN ('borrowed','returned')),
            renew_count INTEGER NOT NULL DEFAULT 0
        );`,
		// One active loan per (user, book): the workflow checks this, the
		// index makes it hold even against racing writers.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_records_active_loan
            ON borrowing_records(user_id, book_id) WHERE status='borrowed';`,
		`CREATE INDEX IF NOT EXISTS idx_records_book ON borrowing_records(book_id);`,
		`CREATE INDEX IF NOT EXISTS idx_records_user ON borrowing_records(user_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}
