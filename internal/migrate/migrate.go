// Package migrate generates SQL migrations from the declared schema and
// applies them with goose. It also supports pushing the declared schema
// straight to a database without migration files.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/unisergius/meetballs/internal/logger"
	"github.com/unisergius/meetballs/internal/store"
)

// VersionTable is the goose bookkeeping table. It is never part of the
// application schema.
const VersionTable = "goose_db_version"

var (
	ErrNoChanges       = errors.New("schema has no changes since the last migration")
	ErrDestructive     = errors.New("plan may lose data; re-run with force to apply it")
	ErrNothingToRevert = errors.New("no applied migration to roll back")
)

// Migrator ties a database connection to a migrations directory.
type Migrator struct {
	db  *sql.DB
	dir string
	log logger.Logger
	now func() time.Time
}

// New creates a Migrator. db may be nil when only Generate is used.
func New(db *sql.DB, dir string, log logger.Logger) *Migrator {
	if log == nil {
		log = logger.Nop{}
	}
	return &Migrator{
		db:  db,
		dir: dir,
		log: log,
		now: time.Now,
	}
}

// Dir returns the migrations directory.
func (m *Migrator) Dir() string { return m.dir }

// provider returns a goose provider over the migrations directory, or
// goose.ErrNoMigrations when there is nothing to run.
func (m *Migrator) provider() (*goose.Provider, error) {
	if m.db == nil {
		return nil, fmt.Errorf("migrator has no database")
	}
	return goose.NewProvider(goose.DialectSQLite3, m.db, os.DirFS(m.dir))
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	p, err := m.provider()
	if errors.Is(err, goose.ErrNoMigrations) {
		m.log.Info("no migrations found in %s", m.dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	results, err := p.Up(ctx)
	for _, r := range results {
		m.log.Info("applied %s in %s", r.Source.Path, r.Duration.Round(time.Millisecond))
	}
	if err != nil {
		m.restoreForeignKeys(ctx)
		return results, fmt.Errorf("migrate up: %w", err)
	}
	if len(results) == 0 {
		m.log.Info("database is up to date")
	}
	return results, nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) (*goose.MigrationResult, error) {
	p, err := m.provider()
	if errors.Is(err, goose.ErrNoMigrations) {
		return nil, ErrNothingToRevert
	}
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	r, err := p.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		return nil, ErrNothingToRevert
	}
	if err != nil {
		m.restoreForeignKeys(ctx)
		return r, fmt.Errorf("migrate down: %w", err)
	}
	m.log.Info("rolled back %s in %s", r.Source.Path, r.Duration.Round(time.Millisecond))
	return r, nil
}

// restoreForeignKeys turns foreign key enforcement back on after a failed
// migration. A table rebuild runs outside a transaction and may stop between
// its PRAGMA foreign_keys=OFF and ON statements.
func (m *Migrator) restoreForeignKeys(ctx context.Context) {
	if _, err := m.db.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys=ON"); err != nil {
		m.log.Warn("restore foreign keys: %v", err)
	}
}

// Status lists every migration file with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	p, err := m.provider()
	if errors.Is(err, goose.ErrNoMigrations) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	return statuses, nil
}

// Version returns the latest applied migration version, 0 when none.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	var v int64
	for _, s := range statuses {
		if s.State == goose.StateApplied && s.Source.Version > v {
			v = s.Source.Version
		}
	}
	return v, nil
}

// State classifies the database against the migrations directory.
func (m *Migrator) State(ctx context.Context) (store.StoreState, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return store.StateUninitialized, err
	}
	applied, pending := 0, 0
	for _, s := range statuses {
		switch s.State {
		case goose.StateApplied:
			applied++
		case goose.StatePending:
			pending++
		}
	}
	switch {
	case applied == 0 && pending == 0:
		return store.StateUninitialized, nil
	case pending > 0 && applied == 0:
		return store.StateUninitialized, nil
	case pending > 0:
		return store.StatePending, nil
	}
	return store.StateReady, nil
}
