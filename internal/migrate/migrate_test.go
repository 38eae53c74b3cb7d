package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/unisergius/meetballs/internal/model"
	"github.com/unisergius/meetballs/internal/schema"
	"github.com/unisergius/meetballs/internal/store"
	"github.com/unisergius/meetballs/internal/store/sqlite"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestMigrator(t *testing.T) (*Migrator, *sqlite.SQLiteStore) {
	t.Helper()
	dir := t.TempDir()
	s := sqlite.New(filepath.Join(dir, "test.db"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	m := New(s.DB(), filepath.Join(dir, "migrations"), nil)
	m.now = func() time.Time { return fixedNow }
	return m, s
}

// usersWithoutAge is the declared schema minus users.age, which forces a
// table rebuild.
func usersWithoutAge() schema.Snapshot {
	users := schema.NewTable("users",
		schema.Integer("id").PrimaryKey().AutoIncrement(),
		schema.Text("name").NotNull(),
		schema.Text("email").NotNull().Unique(),
		schema.Timestamp("created_at").NotNull().DefaultNow(),
	)
	return schema.New(users, model.Todos)
}

func tableExists(t *testing.T, s *sqlite.SQLiteStore, name string) bool {
	t.Helper()
	var n int
	err := s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return n > 0
}

func TestGenerate(t *testing.T) {
	m, _ := newTestMigrator(t)

	gen, err := m.Generate(model.Schema(), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Version != 20250102030405 {
		t.Errorf("version = %d", gen.Version)
	}
	if filepath.Base(gen.Path) != "20250102030405_create_users_todos.sql" {
		t.Errorf("path = %s", gen.Path)
	}

	data, err := os.ReadFile(gen.Path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	body := string(data)
	up, down, ok := strings.Cut(body, "-- +goose Down")
	if !ok || !strings.HasPrefix(up, "-- +goose Up\n") {
		t.Fatalf("missing goose annotations:\n%s", body)
	}
	if !strings.Contains(up, "CREATE TABLE `users`") || !strings.Contains(up, "CREATE TABLE `todos`") {
		t.Errorf("up section incomplete:\n%s", up)
	}
	if strings.Index(down, "DROP TABLE `todos`") > strings.Index(down, "DROP TABLE `users`") {
		t.Errorf("down section drops users before todos:\n%s", down)
	}
	if strings.Contains(body, "NO TRANSACTION") {
		t.Error("create-only migration should run in a transaction")
	}

	snap, err := m.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if plan := schema.Diff(snap, model.Schema()); !plan.Empty() {
		t.Errorf("saved snapshot differs from declared schema: %v", plan.Statements)
	}

	if _, err := m.Generate(model.Schema(), ""); !errors.Is(err, ErrNoChanges) {
		t.Errorf("second Generate: got %v, want ErrNoChanges", err)
	}
}

func TestGenerateVersionsIncrease(t *testing.T) {
	m, _ := newTestMigrator(t)

	first, err := m.Generate(model.Schema(), "init")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := m.Generate(usersWithoutAge(), "Drop user age!")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if second.Version <= first.Version {
		t.Errorf("versions not increasing: %d then %d", first.Version, second.Version)
	}
	if filepath.Base(second.Path) != "20250102030406_drop_user_age.sql" {
		t.Errorf("path = %s", second.Path)
	}
	data, err := os.ReadFile(second.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "-- +goose NO TRANSACTION\n") {
		t.Errorf("rebuild migration must disable transactions:\n%s", data)
	}
	if !strings.Contains(string(data), "-- WARNING: table users: column age is dropped") {
		t.Errorf("expected data loss warning:\n%s", data)
	}
}

func TestGenerateRejectsInvalidSchema(t *testing.T) {
	m, _ := newTestMigrator(t)
	if _, err := m.Generate(schema.New(model.Todos), ""); err == nil {
		t.Fatal("expected error for dangling foreign key")
	}
	if _, err := os.Stat(m.Dir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("nothing should be written for an invalid schema")
	}
}

func TestUpDownStatus(t *testing.T) {
	m, s := newTestMigrator(t)
	ctx := context.Background()

	state, err := m.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != store.StateUninitialized {
		t.Errorf("state = %s, want uninitialized", state)
	}
	if results, err := m.Up(ctx); err != nil || len(results) != 0 {
		t.Fatalf("Up with no migrations: %v, %v", results, err)
	}

	if _, err := m.Generate(model.Schema(), ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	results, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("applied %d migrations, want 1", len(results))
	}
	if !tableExists(t, s, "users") || !tableExists(t, s, "todos") {
		t.Fatal("tables missing after Up")
	}
	if state, _ := m.State(ctx); state != store.StateReady {
		t.Errorf("state = %s, want ready", state)
	}
	if v, _ := m.Version(ctx); v != 20250102030405 {
		t.Errorf("version = %d", v)
	}
	if plan, err := m.Check(ctx, model.Schema()); err != nil || !plan.Empty() {
		t.Errorf("drift after Up: %v %v", plan.Statements, err)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].State != goose.StateApplied {
		t.Errorf("got statuses %+v", statuses)
	}

	if _, err := m.Down(ctx); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if tableExists(t, s, "users") {
		t.Error("users still exists after Down")
	}
	if _, err := m.Down(ctx); !errors.Is(err, ErrNothingToRevert) {
		t.Errorf("second Down: got %v, want ErrNothingToRevert", err)
	}
}

func TestPendingState(t *testing.T) {
	m, _ := newTestMigrator(t)
	ctx := context.Background()

	if _, err := m.Generate(model.Schema(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Generate(usersWithoutAge(), ""); err != nil {
		t.Fatal(err)
	}
	state, err := m.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != store.StatePending {
		t.Errorf("state = %s, want pending", state)
	}
}

func TestRebuildMigrationKeepsData(t *testing.T) {
	m, s := newTestMigrator(t)
	ctx := context.Background()

	if _, err := m.Generate(model.Schema(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}
	u, err := s.CreateUser(ctx, &model.User{Name: "Ada", Age: 36, Email: "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTodo(ctx, &model.Todo{Title: "keep me", UserID: u.ID}); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Generate(usersWithoutAge(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up rebuild: %v", err)
	}

	var name string
	if err := s.DB().QueryRow(`SELECT name FROM users WHERE id = ?`, u.ID).Scan(&name); err != nil {
		t.Fatalf("select user: %v", err)
	}
	if name != "Ada" {
		t.Errorf("name = %q", name)
	}
	var todos int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM todos`).Scan(&todos); err != nil {
		t.Fatal(err)
	}
	if todos != 1 {
		t.Errorf("todos = %d, want 1 (rebuild must not cascade)", todos)
	}
	if plan, err := m.Check(ctx, usersWithoutAge()); err != nil || !plan.Empty() {
		t.Errorf("drift after rebuild: %v %v", plan.Statements, err)
	}
}

func TestFailedRebuildRestoresForeignKeys(t *testing.T) {
	m, s := newTestMigrator(t)
	ctx := context.Background()

	if _, err := m.Generate(model.Schema(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateUser(ctx, &model.User{Name: "Ada", Age: 36, Email: "ada@example.com"}); err != nil {
		t.Fatal(err)
	}

	// Existing rows cannot be copied into a NOT NULL column without a default.
	users := schema.NewTable("users",
		schema.Integer("id").PrimaryKey().AutoIncrement(),
		schema.Text("name").NotNull(),
		schema.Integer("age").NotNull(),
		schema.Text("email").NotNull().Unique(),
		schema.Timestamp("created_at").NotNull().DefaultNow(),
		schema.Text("nick").NotNull(),
	)
	if _, err := m.Generate(schema.New(users, model.Todos), "add nick"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(ctx); err == nil {
		t.Fatal("expected the rebuild to fail")
	}

	var fk int
	if err := s.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil || fk != 1 {
		t.Fatalf("foreign keys = %d, %v; want 1", fk, err)
	}
	_, err := s.CreateTodo(ctx, &model.Todo{Title: "orphan", UserID: 999})
	if !errors.Is(err, store.ErrReference) {
		t.Errorf("CreateTodo for a missing user: got %v, want ErrReference", err)
	}

	_, err = m.Up(ctx)
	if err == nil || strings.Contains(err.Error(), "already exists") {
		t.Errorf("retry must fail on the data again, got %v", err)
	}
	if state, err := m.State(ctx); err != nil || state != store.StatePending {
		t.Errorf("state = %v, %v; want pending", state, err)
	}
}

func TestPush(t *testing.T) {
	m, s := newTestMigrator(t)
	ctx := context.Background()

	plan, err := m.Push(ctx, model.Schema(), false)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if plan.Empty() || !tableExists(t, s, "todos") {
		t.Fatal("push did not create tables")
	}
	if plan, err := m.Push(ctx, model.Schema(), false); err != nil || !plan.Empty() {
		t.Fatalf("second push: %v %v", plan.Statements, err)
	}

	if _, err := s.CreateUser(ctx, &model.User{Name: "Ada", Age: 36, Email: "ada@example.com"}); err != nil {
		t.Fatal(err)
	}

	_, err = m.Push(ctx, usersWithoutAge(), false)
	if !errors.Is(err, ErrDestructive) {
		t.Fatalf("got %v, want ErrDestructive", err)
	}
	if live, _ := m.Introspect(ctx); len(live.Tables["users"].Columns) != 5 {
		t.Error("refused push must not change the database")
	}

	if _, err := m.Push(ctx, usersWithoutAge(), true); err != nil {
		t.Fatalf("forced push: %v", err)
	}
	if plan, err := m.Check(ctx, usersWithoutAge()); err != nil || !plan.Empty() {
		t.Errorf("drift after forced push: %v %v", plan.Statements, err)
	}
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil || n != 1 {
		t.Errorf("users after rebuild = %d, %v", n, err)
	}
	var fk int
	if err := s.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign keys not restored: %d, %v", fk, err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"Add Phone":       "add_phone",
		"  drop--age!! ":  "drop_age",
		"create_users_v2": "create_users_v2",
	}
	for in, want := range tests {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultName(t *testing.T) {
	tests := []struct {
		plan schema.Plan
		want string
	}{
		{schema.Plan{Created: []string{"users", "todos"}}, "create_users_todos"},
		{schema.Plan{Dropped: []string{"todos"}}, "drop_todos"},
		{schema.Plan{Altered: []string{"users"}}, "alter_users"},
		{schema.Plan{Created: []string{"a"}, Dropped: []string{"b"}}, "schema_change"},
	}
	for _, tt := range tests {
		if got := defaultName(tt.plan); got != tt.want {
			t.Errorf("defaultName(%+v) = %q, want %q", tt.plan, got, tt.want)
		}
	}
}
