package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/unisergius/meetballs/internal/store"
)

// SQLiteStore implements the Store and repository interfaces using
// modernc.org/sqlite.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
}

var (
	_ store.Store          = (*SQLiteStore)(nil)
	_ store.UserRepository = (*SQLiteStore)(nil)
	_ store.TodoRepository = (*SQLiteStore)(nil)
)

// New creates a new SQLiteStore for the database file at dbPath.
func New(dbPath string) *SQLiteStore {
	return &SQLiteStore{dbPath: dbPath}
}

// NewFromDB wraps an already open connection.
func NewFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DSN returns the connection string for path with safe defaults applied.
func DSN(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Open opens the SQLite database with safe defaults.
func (s *SQLiteStore) Open() error {
	db, err := sql.Open("sqlite", DSN(s.dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps per-connection state (PRAGMA foreign_keys during
	// table rebuilds) consistent and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying connection pool.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// IntegrityCheck runs PRAGMA integrity_check and reports every problem
// SQLite finds.
func (s *SQLiteStore) IntegrityCheck(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var problems []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return fmt.Errorf("integrity check: %w", err)
		}
		if msg != "ok" {
			problems = append(problems, msg)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity check failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.db, nil
}

// mapError translates constraint violations into store sentinel errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", op, store.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w: %v", op, store.ErrReference, err)
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := se.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%s: %w: %v", op, store.ErrConflict, err)
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%s: %w: %v", op, store.ErrReference, err)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mustAffect(op string, res sql.Result, err error) error {
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
