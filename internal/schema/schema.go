// Package schema declares relational schemas in Go code and renders them as
// SQLite DDL.
//
// A schema is built from tables and column builders:
//
//	users := schema.NewTable("users",
//		schema.Integer("id").PrimaryKey().AutoIncrement(),
//		schema.Text("email").NotNull().Unique(),
//	)
//	snap := schema.New(users)
//
// The resulting Snapshot can be serialised, compared against another snapshot
// with Diff, or compared against a live database with Introspect.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SnapshotVersion is the format version written into serialised snapshots.
const SnapshotVersion = "1"

// DialectSQLite is the only dialect rendered by this package.
const DialectSQLite = "sqlite"

// Column types as stored by SQLite.
const (
	TypeInteger = "integer"
	TypeText    = "text"
	TypeReal    = "real"
	TypeBlob    = "blob"
)

// Foreign key actions.
const (
	ActionNoAction = "no action"
	ActionCascade  = "cascade"
	ActionSetNull  = "set null"
	ActionRestrict = "restrict"
)

// Snapshot is the full structure of a database at one point in time.
type Snapshot struct {
	Version string           `json:"version"`
	Dialect string           `json:"dialect"`
	Tables  map[string]Table `json:"tables"`
}

// Table is a single table declaration.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	Indexes     []Index      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
}

// Column describes a table column. Default holds a raw SQL literal or
// expression; nil means no default.
type Column struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	PrimaryKey    bool    `json:"primaryKey,omitempty"`
	AutoIncrement bool    `json:"autoincrement,omitempty"`
	NotNull       bool    `json:"notNull,omitempty"`
	Default       *string `json:"default,omitempty"`
}

// Index is a secondary index on a table.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// ForeignKey is a single-column reference to another table.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
	OnDelete  string `json:"onDelete,omitempty"`
	OnUpdate  string `json:"onUpdate,omitempty"`
}

// Empty returns a snapshot with no tables.
func Empty() Snapshot {
	return Snapshot{Version: SnapshotVersion, Dialect: DialectSQLite, Tables: map[string]Table{}}
}

// New builds a snapshot from table declarations.
func New(tables ...Table) Snapshot {
	s := Empty()
	for _, t := range tables {
		s.Tables[t.Name] = t
	}
	return s
}

// Marshal serialises the snapshot as indented JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a snapshot written by Marshal.
func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.Dialect != "" && s.Dialect != DialectSQLite {
		return Snapshot{}, fmt.Errorf("unsupported snapshot dialect %q", s.Dialect)
	}
	if s.Tables == nil {
		s.Tables = map[string]Table{}
	}
	return s, nil
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ForeignKey returns the foreign key declared on the named column.
func (t Table) ForeignKey(column string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

func (t Table) index(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// Index returns a copy of t with an additional index.
func (t Table) Index(name string, unique bool, columns ...string) Table {
	t.Indexes = append(append([]Index(nil), t.Indexes...), Index{Name: name, Columns: columns, Unique: unique})
	return t
}

// TableNames returns the table names in lexical order.
func (s Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedTables orders tables so every referenced table precedes the tables
// referencing it. Ties and cycles fall back to lexical order.
func (s Snapshot) SortedTables() []Table {
	var (
		out     []Table
		visited = map[string]bool{}
		active  = map[string]bool{}
	)
	var visit func(name string)
	visit = func(name string) {
		t, ok := s.Tables[name]
		if !ok || visited[name] || active[name] {
			return
		}
		active[name] = true
		refs := make([]string, 0, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != name {
				refs = append(refs, fk.RefTable)
			}
		}
		sort.Strings(refs)
		for _, ref := range refs {
			visit(ref)
		}
		active[name] = false
		visited[name] = true
		out = append(out, t)
	}
	for _, name := range s.TableNames() {
		visit(name)
	}
	return out
}

// Validate reports every structural problem in the snapshot.
func (s Snapshot) Validate() error {
	var errs []error
	for _, name := range s.TableNames() {
		t := s.Tables[name]
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, errors.New("table with empty name"))
			continue
		}
		if t.Name != name {
			errs = append(errs, fmt.Errorf("table %q registered as %q", t.Name, name))
		}
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Errorf("table %q has no columns", t.Name))
		}
		seen := map[string]bool{}
		pks := 0
		for _, c := range t.Columns {
			if c.Name == "" {
				errs = append(errs, fmt.Errorf("table %q: column with empty name", t.Name))
				continue
			}
			if seen[c.Name] {
				errs = append(errs, fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name))
			}
			seen[c.Name] = true
			if c.PrimaryKey {
				pks++
			}
			if c.AutoIncrement && (!c.PrimaryKey || c.Type != TypeInteger) {
				errs = append(errs, fmt.Errorf("table %q: autoincrement column %q must be an integer primary key", t.Name, c.Name))
			}
		}
		if pks > 1 {
			errs = append(errs, fmt.Errorf("table %q: multiple primary keys", t.Name))
		}
		indexNames := map[string]bool{}
		for _, idx := range t.Indexes {
			if indexNames[idx.Name] {
				errs = append(errs, fmt.Errorf("table %q: duplicate index %q", t.Name, idx.Name))
			}
			indexNames[idx.Name] = true
			for _, col := range idx.Columns {
				if !seen[col] {
					errs = append(errs, fmt.Errorf("table %q: index %q references unknown column %q", t.Name, idx.Name, col))
				}
			}
		}
		for _, fk := range t.ForeignKeys {
			if !seen[fk.Column] {
				errs = append(errs, fmt.Errorf("table %q: foreign key on unknown column %q", t.Name, fk.Column))
			}
			ref, ok := s.Tables[fk.RefTable]
			if !ok {
				errs = append(errs, fmt.Errorf("table %q: foreign key references unknown table %q", t.Name, fk.RefTable))
				continue
			}
			if _, ok := ref.Column(fk.RefColumn); !ok {
				errs = append(errs, fmt.Errorf("table %q: foreign key references unknown column %s.%s", t.Name, fk.RefTable, fk.RefColumn))
			}
		}
	}
	return errors.Join(errs...)
}
