package schema

import "fmt"

// ColumnBuilder accumulates a column declaration. Builders are consumed by
// NewTable.
type ColumnBuilder struct {
	col    Column
	unique bool
	fk     *ForeignKey
}

func newColumn(name, typ string) *ColumnBuilder {
	return &ColumnBuilder{col: Column{Name: name, Type: typ}}
}

// Integer declares an integer column.
func Integer(name string) *ColumnBuilder { return newColumn(name, TypeInteger) }

// Text declares a text column.
func Text(name string) *ColumnBuilder { return newColumn(name, TypeText) }

// Real declares a floating point column.
func Real(name string) *ColumnBuilder { return newColumn(name, TypeReal) }

// Blob declares a blob column.
func Blob(name string) *ColumnBuilder { return newColumn(name, TypeBlob) }

// Boolean declares an integer column holding 0 or 1.
func Boolean(name string) *ColumnBuilder { return newColumn(name, TypeInteger) }

// Timestamp declares an integer column holding unix seconds.
func Timestamp(name string) *ColumnBuilder { return newColumn(name, TypeInteger) }

// PrimaryKey marks the column as the table's primary key. Primary keys are
// always NOT NULL.
func (b *ColumnBuilder) PrimaryKey() *ColumnBuilder {
	b.col.PrimaryKey = true
	b.col.NotNull = true
	return b
}

// AutoIncrement stops SQLite from reusing the IDs of deleted rows. It only
// applies to an integer primary key.
func (b *ColumnBuilder) AutoIncrement() *ColumnBuilder {
	b.col.AutoIncrement = true
	return b
}

// NotNull rejects NULL values.
func (b *ColumnBuilder) NotNull() *ColumnBuilder {
	b.col.NotNull = true
	return b
}

// Unique adds a unique index named <table>_<column>_unique.
func (b *ColumnBuilder) Unique() *ColumnBuilder {
	b.unique = true
	return b
}

// Default sets a raw SQL default, e.g. "0", "'draft'" or "(unixepoch())".
func (b *ColumnBuilder) Default(sql string) *ColumnBuilder {
	b.col.Default = &sql
	return b
}

// DefaultBool sets a boolean default stored as 0 or 1.
func (b *ColumnBuilder) DefaultBool(v bool) *ColumnBuilder {
	if v {
		return b.Default("1")
	}
	return b.Default("0")
}

// DefaultNow defaults the column to the current unix time.
func (b *ColumnBuilder) DefaultNow() *ColumnBuilder {
	return b.Default("(unixepoch())")
}

// References adds a foreign key to table(column).
func (b *ColumnBuilder) References(table, column string) *ColumnBuilder {
	b.fk = &ForeignKey{
		Column:    b.col.Name,
		RefTable:  table,
		RefColumn: column,
		OnDelete:  ActionNoAction,
		OnUpdate:  ActionNoAction,
	}
	return b
}

// OnDelete sets the delete action of the foreign key added by References.
func (b *ColumnBuilder) OnDelete(action string) *ColumnBuilder {
	if b.fk != nil {
		b.fk.OnDelete = action
	}
	return b
}

// OnUpdate sets the update action of the foreign key added by References.
func (b *ColumnBuilder) OnUpdate(action string) *ColumnBuilder {
	if b.fk != nil {
		b.fk.OnUpdate = action
	}
	return b
}

// NewTable builds a table from column builders, in declaration order.
func NewTable(name string, columns ...*ColumnBuilder) Table {
	t := Table{Name: name}
	for _, b := range columns {
		t.Columns = append(t.Columns, b.col)
		if b.unique {
			t.Indexes = append(t.Indexes, Index{
				Name:    UniqueIndexName(name, b.col.Name),
				Columns: []string{b.col.Name},
				Unique:  true,
			})
		}
		if b.fk != nil {
			t.ForeignKeys = append(t.ForeignKeys, *b.fk)
		}
	}
	return t
}

// UniqueIndexName is the name given to the index behind a Unique column.
func UniqueIndexName(table, column string) string {
	return fmt.Sprintf("%s_%s_unique", table, column)
}
