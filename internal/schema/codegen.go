package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// GoSource renders s as Go declarations using this package's builders. It is
// the database-first direction: a schema read from a live database becomes
// code that can be pasted into a schema file.
func GoSource(pkg string, s Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "package %s\n\n", pkg)
	sb.WriteString("import \"github.com/unisergius/meetballs/internal/schema\"\n")

	for _, t := range s.SortedTables() {
		unique := map[string]bool{}
		for _, idx := range t.Indexes {
			if idx.Unique && len(idx.Columns) == 1 && idx.Name == UniqueIndexName(t.Name, idx.Columns[0]) {
				unique[idx.Columns[0]] = true
			}
		}

		fmt.Fprintf(&sb, "\nvar %s = schema.NewTable(%q,\n", goIdent(t.Name), t.Name)
		for _, c := range t.Columns {
			expr, comment := columnSource(t, c, unique[c.Name])
			fmt.Fprintf(&sb, "\t%s,%s\n", expr, comment)
		}
		sb.WriteString(")")
		for _, idx := range t.Indexes {
			if idx.Unique && len(idx.Columns) == 1 && idx.Name == UniqueIndexName(t.Name, idx.Columns[0]) {
				continue
			}
			fmt.Fprintf(&sb, ".\n\tIndex(%q, %t", idx.Name, idx.Unique)
			for _, col := range idx.Columns {
				fmt.Fprintf(&sb, ", %q", col)
			}
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func columnSource(t Table, c Column, unique bool) (expr, comment string) {
	var sb strings.Builder
	ctor := "Text"
	switch c.Type {
	case TypeInteger:
		ctor = "Integer"
	case TypeText:
	case TypeReal:
		ctor = "Real"
	case TypeBlob:
		ctor = "Blob"
	default:
		comment = fmt.Sprintf(" // declared as %q", c.Type)
	}
	fmt.Fprintf(&sb, "schema.%s(%q)", ctor, c.Name)
	if c.PrimaryKey {
		sb.WriteString(".PrimaryKey()")
		if c.AutoIncrement {
			sb.WriteString(".AutoIncrement()")
		}
	} else if c.NotNull {
		sb.WriteString(".NotNull()")
	}
	if unique {
		sb.WriteString(".Unique()")
	}
	if c.Default != nil {
		fmt.Fprintf(&sb, ".Default(%q)", *c.Default)
	}
	if fk, ok := t.ForeignKey(c.Name); ok {
		fmt.Fprintf(&sb, ".References(%q, %q)", fk.RefTable, fk.RefColumn)
		if a := normalizeAction(fk.OnDelete); a != ActionNoAction {
			fmt.Fprintf(&sb, ".OnDelete(%q)", a)
		}
		if a := normalizeAction(fk.OnUpdate); a != ActionNoAction {
			fmt.Fprintf(&sb, ".OnUpdate(%q)", a)
		}
	}
	return sb.String(), comment
}

func goIdent(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' || r == ' ' {
			upper = true
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if sb.Len() == 0 && unicode.IsDigit(r) {
			sb.WriteString("T")
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "Table"
	}
	return sb.String()
}
