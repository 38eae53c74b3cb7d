package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/unisergius/meetballs/internal/schema"
)

// Introspect reads the live application schema, leaving out goose's table.
func (m *Migrator) Introspect(ctx context.Context) (schema.Snapshot, error) {
	if m.db == nil {
		return schema.Snapshot{}, fmt.Errorf("migrator has no database")
	}
	return schema.Introspect(ctx, m.db, VersionTable)
}

// Check returns the plan that would bring the live database in line with
// the declared schema. An empty plan means there is no drift.
func (m *Migrator) Check(ctx context.Context, declared schema.Snapshot) (schema.Plan, error) {
	live, err := m.Introspect(ctx)
	if err != nil {
		return schema.Plan{}, err
	}
	return schema.Diff(live, declared), nil
}

// Push applies the declared schema directly to the database, skipping
// migration files. Plans with warnings are refused unless force is set.
func (m *Migrator) Push(ctx context.Context, declared schema.Snapshot, force bool) (schema.Plan, error) {
	if err := declared.Validate(); err != nil {
		return schema.Plan{}, fmt.Errorf("invalid schema: %w", err)
	}
	plan, err := m.Check(ctx, declared)
	if err != nil {
		return plan, err
	}
	if plan.Empty() {
		m.log.Info("database already matches the schema")
		return plan, nil
	}
	for _, w := range plan.Warnings {
		m.log.Warn("%s", w)
	}
	if len(plan.Warnings) > 0 && !force {
		return plan, ErrDestructive
	}
	if err := m.exec(ctx, plan); err != nil {
		return plan, err
	}
	m.log.Info("pushed %d statements", len(plan.Statements))
	return plan, nil
}

// exec runs a plan on one connection. Plans that rebuild tables run outside
// a transaction because PRAGMA foreign_keys is a no-op inside one; the
// foreign keys are verified afterwards instead.
func (m *Migrator) exec(ctx context.Context, plan schema.Plan) (err error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	if plan.Rebuild {
		defer func() {
			if _, ferr := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys=ON"); ferr != nil && err == nil {
				err = fmt.Errorf("restore foreign keys: %w", ferr)
			}
		}()
		for _, stmt := range plan.Statements {
			m.log.Debug("exec: %s", stmt)
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
			}
		}
		return checkForeignKeys(ctx, conn)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, stmt := range plan.Statements {
		m.log.Debug("exec: %s", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func checkForeignKeys(ctx context.Context, q schema.Querier) error {
	rows, err := q.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		return fmt.Errorf("foreign key check: rows violate foreign keys after rebuild")
	}
	return rows.Err()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
