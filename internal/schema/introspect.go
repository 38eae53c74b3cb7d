package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Introspect reads the structure of a live SQLite database. Internal sqlite_
// tables, automatic indexes and the tables named in exclude are skipped.
//
// Every result set is drained before the next query is issued, so a
// database limited to one open connection does not deadlock.
func Introspect(ctx context.Context, q Querier, exclude ...string) (Snapshot, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	type master struct{ name, sql string }
	rows, err := q.QueryContext(ctx,
		`SELECT name, COALESCE(sql, '') FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list tables: %w", err)
	}
	var tables []master
	for rows.Next() {
		var m master
		if err := rows.Scan(&m.name, &m.sql); err != nil {
			rows.Close()
			return Snapshot{}, fmt.Errorf("scan table: %w", err)
		}
		if !skip[m.name] {
			tables = append(tables, m)
		}
	}
	if err := rows.Close(); err != nil {
		return Snapshot{}, fmt.Errorf("list tables: %w", err)
	}

	snap := Empty()
	for _, m := range tables {
		t := Table{Name: m.name}
		if t.Columns, err = introspectColumns(ctx, q, m.name, m.sql); err != nil {
			return Snapshot{}, err
		}
		if t.Indexes, err = introspectIndexes(ctx, q, m.name); err != nil {
			return Snapshot{}, err
		}
		if t.ForeignKeys, err = introspectForeignKeys(ctx, q, m.name); err != nil {
			return Snapshot{}, err
		}
		snap.Tables[t.Name] = t
	}
	return snap, nil
}

func introspectColumns(ctx context.Context, q Querier, table, ddl string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	autoinc := strings.Contains(strings.ToUpper(ddl), "AUTOINCREMENT")
	var cols []Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			c                Column
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		c.Type = strings.ToLower(c.Type)
		c.NotNull = notNull != 0
		c.PrimaryKey = pk > 0
		c.AutoIncrement = c.PrimaryKey && autoinc && c.Type == TypeInteger
		if dflt.Valid {
			v := dflt.String
			c.Default = &v
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func introspectIndexes(ctx context.Context, q Querier, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, table)
	if err != nil {
		return nil, fmt.Errorf("index list %s: %w", table, err)
	}
	var (
		indexes     []Index
		constraints []bool
	)
	for rows.Next() {
		var (
			idx    Index
			unique int
			origin string
		)
		if err := rows.Scan(&idx.Name, &unique, &origin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan index of %s: %w", table, err)
		}
		// origin "c" is CREATE INDEX, "u" a UNIQUE constraint and "pk" the
		// primary key.
		if origin != "c" && origin != "u" {
			continue
		}
		idx.Unique = unique != 0
		indexes = append(indexes, idx)
		constraints = append(constraints, origin == "u")
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("index list %s: %w", table, err)
	}

	for i := range indexes {
		cols, err := q.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, indexes[i].Name)
		if err != nil {
			return nil, fmt.Errorf("index info %s: %w", indexes[i].Name, err)
		}
		for cols.Next() {
			var name sql.NullString
			if err := cols.Scan(&name); err != nil {
				cols.Close()
				return nil, fmt.Errorf("scan index column: %w", err)
			}
			indexes[i].Columns = append(indexes[i].Columns, name.String)
		}
		if err := cols.Close(); err != nil {
			return nil, fmt.Errorf("index info %s: %w", indexes[i].Name, err)
		}
		// sqlite_autoindex_* names are reserved; UNIQUE constraints come
		// back as the unique indexes the builder would declare.
		if constraints[i] {
			indexes[i].Name = UniqueIndexName(table, strings.Join(indexes[i].Columns, "_"))
		}
	}
	return indexes, nil
}

func introspectForeignKeys(ctx context.Context, q Querier, table string) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var fks []ForeignKey
	for rows.Next() {
		var (
			fk ForeignKey
			to sql.NullString
		)
		if err := rows.Scan(&fk.RefTable, &fk.Column, &to, &fk.OnUpdate, &fk.OnDelete); err != nil {
			return nil, fmt.Errorf("scan foreign key of %s: %w", table, err)
		}
		fk.RefColumn = to.String
		fk.OnUpdate = strings.ToLower(fk.OnUpdate)
		fk.OnDelete = strings.ToLower(fk.OnDelete)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
