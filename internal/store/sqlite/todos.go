package sqlite

import (
	"context"

	"github.com/unisergius/meetballs/internal/model"
)

func scanTodo(scanner interface{ Scan(...any) error }, t *model.Todo) error {
	var created int64
	if err := scanner.Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &created); err != nil {
		return err
	}
	t.CreatedAt = unixTime(created)
	return nil
}

// CreateTodo inserts a todo for an existing user.
func (s *SQLiteStore) CreateTodo(ctx context.Context, t *model.Todo) (*model.Todo, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO todos (title, completed, user_id) VALUES (?, ?, ?) RETURNING ` + todoColumns
	var out model.Todo
	if err := scanTodo(db.QueryRowContext(ctx, q, t.Title, t.Completed, t.UserID), &out); err != nil {
		return nil, mapError("create todo", err)
	}
	return &out, nil
}

// GetTodo fetches a single todo by ID.
func (s *SQLiteStore) GetTodo(ctx context.Context, id int64) (*model.Todo, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var t model.Todo
	if err := scanTodo(db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id), &t); err != nil {
		return nil, mapError("get todo", err)
	}
	return &t, nil
}

// ListTodos returns todos ordered by ID, optionally only those of one user.
func (s *SQLiteStore) ListTodos(ctx context.Context, userID *int64) ([]model.Todo, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + todoColumns + ` FROM todos`
	var args []any
	if userID != nil {
		q += ` WHERE user_id = ?`
		args = append(args, *userID)
	}
	q += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError("list todos", err)
	}
	defer rows.Close() //nolint:errcheck

	todos := make([]model.Todo, 0)
	for rows.Next() {
		var t model.Todo
		if err := scanTodo(rows, &t); err != nil {
			return nil, mapError("scan todo", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// ListTodosWithUsers joins every todo with its owner's name.
func (s *SQLiteStore) ListTodosWithUsers(ctx context.Context) ([]model.TodoWithUser, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.title, t.completed, t.user_id, t.created_at, u.name
		FROM todos t
		INNER JOIN users u ON u.id = t.user_id
		ORDER BY t.id`)
	if err != nil {
		return nil, mapError("list todos with users", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]model.TodoWithUser, 0)
	for rows.Next() {
		var (
			tw      model.TodoWithUser
			created int64
		)
		if err := rows.Scan(&tw.ID, &tw.Title, &tw.Completed, &tw.UserID, &created, &tw.UserName); err != nil {
			return nil, mapError("scan todo", err)
		}
		tw.CreatedAt = unixTime(created)
		out = append(out, tw)
	}
	return out, rows.Err()
}

// SetTodoCompleted marks a todo done or not done.
func (s *SQLiteStore) SetTodoCompleted(ctx context.Context, id int64, completed bool) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE todos SET completed = ? WHERE id = ?`, completed, id)
	return mustAffect("update todo", res, err)
}

// DeleteTodo removes a todo.
func (s *SQLiteStore) DeleteTodo(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	return mustAffect("delete todo", res, err)
}
