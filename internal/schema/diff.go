package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Plan is the ordered list of statements that turns one snapshot into
// another. Warnings describe changes that may lose or reject existing data.
type Plan struct {
	Statements []string
	Warnings   []string

	// Rebuild is set when a table is recreated. Rebuilds toggle
	// PRAGMA foreign_keys, which SQLite ignores inside a transaction.
	Rebuild bool

	Created []string
	Altered []string
	Dropped []string
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool { return len(p.Statements) == 0 }

func (p *Plan) add(stmts ...string) { p.Statements = append(p.Statements, stmts...) }

func (p *Plan) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Diff computes the plan that migrates a database shaped like from into one
// shaped like to. Index names are global in SQLite, so every index drop runs
// before any table work and every index creation runs after it.
func Diff(from, to Snapshot) Plan {
	var (
		p                                  Plan
		dropIndexes, tables, createIndexes []string
	)

	for _, t := range to.SortedTables() {
		if _, ok := from.Tables[t.Name]; ok {
			continue
		}
		p.Created = append(p.Created, t.Name)
		tables = append(tables, CreateTableSQL(t))
		for _, idx := range t.Indexes {
			createIndexes = append(createIndexes, CreateIndexSQL(t.Name, idx))
		}
	}

	for _, t := range to.SortedTables() {
		old, ok := from.Tables[t.Name]
		if !ok {
			continue
		}
		ch := p.alter(old, t)
		if ch.empty() {
			continue
		}
		p.Altered = append(p.Altered, t.Name)
		dropIndexes = append(dropIndexes, ch.dropIndexes...)
		tables = append(tables, ch.statements...)
		createIndexes = append(createIndexes, ch.createIndexes...)
	}

	sorted := from.SortedTables()
	for i := len(sorted) - 1; i >= 0; i-- {
		t := sorted[i]
		if _, ok := to.Tables[t.Name]; ok {
			continue
		}
		p.Dropped = append(p.Dropped, t.Name)
		tables = append(tables, DropTableSQL(t.Name))
		p.warn("table %s is dropped with all of its rows", t.Name)
	}

	p.add(dropIndexes...)
	p.add(tables...)
	p.add(createIndexes...)
	return p
}

// tableChange holds the statements for one altered table, split by phase.
type tableChange struct {
	dropIndexes   []string
	statements    []string
	createIndexes []string
}

func (c tableChange) empty() bool {
	return len(c.dropIndexes) == 0 && len(c.statements) == 0 && len(c.createIndexes) == 0
}

// alter returns the statements for a table present in both snapshots.
func (p *Plan) alter(old, t Table) tableChange {
	var (
		ch                     tableChange
		added, dropped, common []Column
	)
	rebuild := false

	for _, c := range t.Columns {
		prev, ok := old.Column(c.Name)
		if !ok {
			added = append(added, c)
			if !addable(t, c) {
				rebuild = true
			}
			continue
		}
		common = append(common, c)
		if !columnsEqual(prev, c) {
			rebuild = true
			if !strings.EqualFold(prev.Type, c.Type) {
				p.warn("table %s: column %s changes type from %s to %s", t.Name, c.Name, prev.Type, c.Type)
			}
			if c.NotNull && !prev.NotNull {
				p.warn("table %s: column %s becomes NOT NULL; rows holding NULL cannot be copied", t.Name, c.Name)
			}
		}
	}
	for _, c := range old.Columns {
		if _, ok := t.Column(c.Name); !ok {
			dropped = append(dropped, c)
			rebuild = true
			p.warn("table %s: column %s is dropped with its data", t.Name, c.Name)
		}
	}
	if !foreignKeysEqual(old.ForeignKeys, t.ForeignKeys) {
		rebuild = true
	}

	if rebuild {
		for _, c := range added {
			if c.NotNull && c.Default == nil {
				p.warn("table %s: column %s is NOT NULL without a default; existing rows cannot be copied", t.Name, c.Name)
			}
		}
		// Dropping the old table takes its indexes with it.
		ch.statements = p.rebuild(t, common)
		for _, idx := range t.Indexes {
			ch.createIndexes = append(ch.createIndexes, CreateIndexSQL(t.Name, idx))
		}
		return ch
	}

	for _, idx := range old.Indexes {
		next, ok := t.index(idx.Name)
		if !ok || !indexesEqual(idx, next) {
			ch.dropIndexes = append(ch.dropIndexes, DropIndexSQL(idx.Name))
		}
	}
	for _, c := range added {
		ch.statements = append(ch.statements, AddColumnSQL(t.Name, c))
	}
	for _, idx := range t.Indexes {
		prev, ok := old.index(idx.Name)
		if !ok || !indexesEqual(prev, idx) {
			ch.createIndexes = append(ch.createIndexes, CreateIndexSQL(t.Name, idx))
		}
	}
	return ch
}

// rebuild recreates t under a temporary name, copies the surviving columns
// and swaps it into place. A temporary table left by an earlier failed run
// is dropped first.
func (p *Plan) rebuild(t Table, common []Column) []string {
	p.Rebuild = true
	tmp := "__new_" + t.Name
	names := make([]string, len(common))
	for i, c := range common {
		names[i] = c.Name
	}
	stmts := []string{
		"PRAGMA foreign_keys=OFF;",
		fmt.Sprintf("DROP TABLE IF EXISTS %s;", Quote(tmp)),
		createTableAs(t, tmp),
	}
	if len(names) > 0 {
		cols := quoteAll(names)
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s(%s) SELECT %s FROM %s;", Quote(tmp), cols, cols, Quote(t.Name)))
	}
	return append(stmts,
		DropTableSQL(t.Name),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", Quote(tmp), Quote(t.Name)),
		"PRAGMA foreign_keys=ON;",
	)
}

// addable reports whether SQLite can add c with ALTER TABLE ADD COLUMN.
func addable(t Table, c Column) bool {
	if c.PrimaryKey {
		return false
	}
	if _, ok := t.ForeignKey(c.Name); ok {
		return false
	}
	if c.Default == nil {
		return !c.NotNull
	}
	// Expression defaults are rejected by ADD COLUMN.
	return !strings.HasPrefix(strings.TrimSpace(*c.Default), "(")
}

func columnsEqual(a, b Column) bool {
	return strings.EqualFold(a.Type, b.Type) &&
		a.PrimaryKey == b.PrimaryKey &&
		a.AutoIncrement == b.AutoIncrement &&
		a.NotNull == b.NotNull &&
		defaultsEqual(a.Default, b.Default)
}

func defaultsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return NormalizeDefault(*a) == NormalizeDefault(*b)
}

// NormalizeDefault strips whitespace and redundant outer parentheses so that
// declared and introspected defaults compare equal.
func NormalizeDefault(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && balanced(s[1:len(s)-1]) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func indexesEqual(a, b Index) bool {
	return a.Unique == b.Unique && slices.Equal(a.Columns, b.Columns)
}

func normalizeAction(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	if a == "" {
		return ActionNoAction
	}
	return a
}

func foreignKeysEqual(a, b []ForeignKey) bool {
	if len(a) != len(b) {
		return false
	}
	byColumn := make(map[string]ForeignKey, len(a))
	for _, fk := range a {
		byColumn[fk.Column] = fk
	}
	for _, fk := range b {
		prev, ok := byColumn[fk.Column]
		if !ok {
			return false
		}
		if prev.RefTable != fk.RefTable || prev.RefColumn != fk.RefColumn ||
			normalizeAction(prev.OnDelete) != normalizeAction(fk.OnDelete) ||
			normalizeAction(prev.OnUpdate) != normalizeAction(fk.OnUpdate) {
			return false
		}
	}
	return true
}
