package schema

import (
	"slices"
	"strings"
	"testing"
)

func TestDiffIdentical(t *testing.T) {
	if plan := Diff(testSnapshot(), testSnapshot()); !plan.Empty() || len(plan.Warnings) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}

func TestDiffCreateFromEmpty(t *testing.T) {
	plan := Diff(Empty(), testSnapshot())

	if !slices.Equal(plan.Created, []string{"users", "todos"}) {
		t.Errorf("created = %v, want [users todos]", plan.Created)
	}
	users, todos := usersTable(), todosTable()
	want := []string{
		CreateTableSQL(users),
		CreateTableSQL(todos),
		CreateIndexSQL(users.Name, users.Indexes[0]),
		CreateIndexSQL(todos.Name, todos.Indexes[0]),
	}
	if !slices.Equal(plan.Statements, want) {
		t.Errorf("got\n%s\nwant\n%s", strings.Join(plan.Statements, "\n"), strings.Join(want, "\n"))
	}
	if plan.Rebuild || len(plan.Warnings) != 0 {
		t.Errorf("unexpected rebuild or warnings: %+v", plan)
	}
}

func TestDiffDropAll(t *testing.T) {
	plan := Diff(testSnapshot(), Empty())

	want := []string{"DROP TABLE `todos`;", "DROP TABLE `users`;"}
	if !slices.Equal(plan.Statements, want) {
		t.Errorf("got %v, want %v", plan.Statements, want)
	}
	if len(plan.Warnings) != 2 {
		t.Errorf("got %d warnings, want 2", len(plan.Warnings))
	}
}

func TestDiffAlter(t *testing.T) {
	withPhone := func(col *ColumnBuilder) Snapshot {
		users := NewTable("users",
			Integer("id").PrimaryKey().AutoIncrement(),
			Text("name").NotNull(),
			Integer("age").NotNull(),
			Text("email").NotNull().Unique(),
			col,
		)
		return New(users, todosTable())
	}

	tests := []struct {
		name        string
		from, to    Snapshot
		want        []string
		wantRebuild bool
		wantWarn    int
	}{
		{
			name: "add nullable column",
			from: testSnapshot(),
			to:   withPhone(Text("phone")),
			want: []string{"ALTER TABLE `users` ADD COLUMN `phone` text;"},
		},
		{
			name: "add not null column with constant default",
			from: testSnapshot(),
			to:   withPhone(Text("phone").NotNull().Default("''")),
			want: []string{"ALTER TABLE `users` ADD COLUMN `phone` text NOT NULL DEFAULT '';"},
		},
		{
			name: "add unique column",
			from: testSnapshot(),
			to:   withPhone(Text("phone").Unique()),
			want: []string{
				"ALTER TABLE `users` ADD COLUMN `phone` text;",
				"CREATE UNIQUE INDEX `users_phone_unique` ON `users` (`phone`);",
			},
		},
		{
			name:        "add column with expression default",
			from:        testSnapshot(),
			to:          withPhone(Timestamp("seen_at").DefaultNow()),
			wantRebuild: true,
		},
		{
			name:        "add not null column without default",
			from:        testSnapshot(),
			to:          withPhone(Text("phone").NotNull()),
			wantRebuild: true,
			wantWarn:    1,
		},
		{
			name:        "drop column",
			from:        withPhone(Text("phone")),
			to:          testSnapshot(),
			wantRebuild: true,
			wantWarn:    1,
		},
		{
			name: "drop index",
			from: testSnapshot(),
			to: New(usersTable(), Table{
				Name:        "todos",
				Columns:     todosTable().Columns,
				ForeignKeys: todosTable().ForeignKeys,
			}),
			want: []string{"DROP INDEX `todos_user_id_idx`;"},
		},
		{
			name: "change index columns",
			from: testSnapshot(),
			to: New(usersTable(), Table{
				Name:        "todos",
				Columns:     todosTable().Columns,
				ForeignKeys: todosTable().ForeignKeys,
				Indexes:     []Index{{Name: "todos_user_id_idx", Columns: []string{"user_id", "completed"}}},
			}),
			want: []string{
				"DROP INDEX `todos_user_id_idx`;",
				"CREATE INDEX `todos_user_id_idx` ON `todos` (`user_id`, `completed`);",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Diff(tt.from, tt.to)
			if plan.Rebuild != tt.wantRebuild {
				t.Fatalf("rebuild = %v, want %v: %v", plan.Rebuild, tt.wantRebuild, plan.Statements)
			}
			if len(plan.Warnings) != tt.wantWarn {
				t.Errorf("got warnings %v, want %d", plan.Warnings, tt.wantWarn)
			}
			if tt.want != nil && !slices.Equal(plan.Statements, tt.want) {
				t.Errorf("got\n%s\nwant\n%s", strings.Join(plan.Statements, "\n"), strings.Join(tt.want, "\n"))
			}
			if len(plan.Altered) != 1 {
				t.Errorf("altered = %v, want one table", plan.Altered)
			}
		})
	}
}

func TestDiffRebuildStatements(t *testing.T) {
	from := New(NewTable("notes",
		Integer("id").PrimaryKey(),
		Text("body"),
		Text("legacy"),
	).Index("notes_body_idx", false, "body"))
	to := New(NewTable("notes",
		Integer("id").PrimaryKey(),
		Text("body").NotNull(),
	).Index("notes_body_idx", false, "body"))

	plan := Diff(from, to)
	want := []string{
		"PRAGMA foreign_keys=OFF;",
		"DROP TABLE IF EXISTS `__new_notes`;",
		"CREATE TABLE `__new_notes` (\n\t`id` integer PRIMARY KEY NOT NULL,\n\t`body` text NOT NULL\n);",
		"INSERT INTO `__new_notes`(`id`, `body`) SELECT `id`, `body` FROM `notes`;",
		"DROP TABLE `notes`;",
		"ALTER TABLE `__new_notes` RENAME TO `notes`;",
		"PRAGMA foreign_keys=ON;",
		"CREATE INDEX `notes_body_idx` ON `notes` (`body`);",
	}
	if !slices.Equal(plan.Statements, want) {
		t.Fatalf("got\n%s\nwant\n%s", strings.Join(plan.Statements, "\n"), strings.Join(want, "\n"))
	}
	// body becomes NOT NULL, legacy is dropped.
	if len(plan.Warnings) != 2 {
		t.Errorf("got warnings %v, want 2", plan.Warnings)
	}
}

func TestDiffMovesIndexAcrossTables(t *testing.T) {
	a := NewTable("a", Integer("x"))
	b := NewTable("b", Integer("y"))
	from := New(a, b.Index("shared_idx", false, "y"))
	to := New(a.Index("shared_idx", false, "x"), b)

	plan := Diff(from, to)
	want := []string{
		"DROP INDEX `shared_idx`;",
		"CREATE INDEX `shared_idx` ON `a` (`x`);",
	}
	if !slices.Equal(plan.Statements, want) {
		t.Fatalf("got\n%s\nwant\n%s", strings.Join(plan.Statements, "\n"), strings.Join(want, "\n"))
	}
	if !slices.Equal(plan.Altered, []string{"a", "b"}) {
		t.Errorf("altered = %v, want [a b]", plan.Altered)
	}
}

func TestDiffIndexDropsPrecedeTableWork(t *testing.T) {
	from := New(
		NewTable("a", Integer("x")).Index("a_x_idx", false, "x"),
		NewTable("b", Integer("y")),
	)
	to := New(
		NewTable("a", Integer("x")),
		NewTable("b", Integer("y"), Text("note")),
		NewTable("c", Integer("z")).Index("a_x_idx", false, "z"),
	)

	plan := Diff(from, to)
	want := []string{
		"DROP INDEX `a_x_idx`;",
		CreateTableSQL(to.Tables["c"]),
		"ALTER TABLE `b` ADD COLUMN `note` text;",
		"CREATE INDEX `a_x_idx` ON `c` (`z`);",
	}
	if !slices.Equal(plan.Statements, want) {
		t.Fatalf("got\n%s\nwant\n%s", strings.Join(plan.Statements, "\n"), strings.Join(want, "\n"))
	}
}

func TestDiffForeignKeyChange(t *testing.T) {
	to := testSnapshot()
	todos := to.Tables["todos"]
	todos.ForeignKeys = []ForeignKey{{Column: "user_id", RefTable: "users", RefColumn: "id", OnDelete: ActionSetNull}}
	to.Tables["todos"] = todos

	plan := Diff(testSnapshot(), to)
	if !plan.Rebuild {
		t.Fatalf("expected rebuild, got %v", plan.Statements)
	}
	if !slices.Equal(plan.Altered, []string{"todos"}) {
		t.Errorf("altered = %v", plan.Altered)
	}
}

func TestDiffForeignKeyActionCase(t *testing.T) {
	from := testSnapshot()
	todos := from.Tables["todos"]
	todos.ForeignKeys = []ForeignKey{{Column: "user_id", RefTable: "users", RefColumn: "id", OnDelete: "CASCADE", OnUpdate: "NO ACTION"}}
	from.Tables["todos"] = todos

	if plan := Diff(from, testSnapshot()); !plan.Empty() {
		t.Errorf("expected no changes, got %v", plan.Statements)
	}
}

func TestNormalizeDefault(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "0"},
		{" (unixepoch()) ", "unixepoch()"},
		{"((1))", "1"},
		{"(a) + (b)", "(a) + (b)"},
		{"'x'", "'x'"},
	}
	for _, tt := range tests {
		if got := NormalizeDefault(tt.in); got != tt.want {
			t.Errorf("NormalizeDefault(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
