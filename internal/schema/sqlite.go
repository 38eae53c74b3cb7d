package schema

import (
	"fmt"
	"strings"
)

// Quote returns a backtick-quoted SQLite identifier.
func Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = Quote(id)
	}
	return strings.Join(quoted, ", ")
}

// ColumnSQL renders a column definition as used inside CREATE TABLE and
// ALTER TABLE ADD COLUMN.
func ColumnSQL(c Column) string {
	var sb strings.Builder
	sb.WriteString(Quote(c.Name))
	sb.WriteByte(' ')
	sb.WriteString(c.Type)
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			sb.WriteString(" AUTOINCREMENT")
		}
	}
	if c.NotNull {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(*c.Default)
	}
	return sb.String()
}

func foreignKeySQL(fk ForeignKey) string {
	onUpdate, onDelete := fk.OnUpdate, fk.OnDelete
	if onUpdate == "" {
		onUpdate = ActionNoAction
	}
	if onDelete == "" {
		onDelete = ActionNoAction
	}
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) ON UPDATE %s ON DELETE %s",
		Quote(fk.Column), Quote(fk.RefTable), Quote(fk.RefColumn), onUpdate, onDelete)
}

// CreateTableSQL renders the CREATE TABLE statement for t.
func CreateTableSQL(t Table) string {
	return createTableAs(t, t.Name)
}

func createTableAs(t Table, name string) string {
	lines := make([]string, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, c := range t.Columns {
		lines = append(lines, "\t"+ColumnSQL(c))
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, "\t"+foreignKeySQL(fk))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", Quote(name), strings.Join(lines, ",\n"))
}

// CreateIndexSQL renders the CREATE INDEX statement for idx on table.
func CreateIndexSQL(table string, idx Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s);", kind, Quote(idx.Name), Quote(table), quoteAll(idx.Columns))
}

// DropIndexSQL renders DROP INDEX.
func DropIndexSQL(name string) string {
	return fmt.Sprintf("DROP INDEX %s;", Quote(name))
}

// DropTableSQL renders DROP TABLE.
func DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE %s;", Quote(name))
}

// AddColumnSQL renders ALTER TABLE ADD COLUMN.
func AddColumnSQL(table string, c Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", Quote(table), ColumnSQL(c))
}

// SQL renders the statements that create every table and index in s.
func (s Snapshot) SQL() []string {
	var stmts []string
	for _, t := range s.SortedTables() {
		stmts = append(stmts, CreateTableSQL(t))
		for _, idx := range t.Indexes {
			stmts = append(stmts, CreateIndexSQL(t.Name, idx))
		}
	}
	return stmts
}
