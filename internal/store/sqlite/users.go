package sqlite

import (
	"context"

	"github.com/unisergius/meetballs/internal/model"
	"github.com/unisergius/meetballs/internal/store"
)

func scanUser(scanner interface{ Scan(...any) error }, u *model.User) error {
	var created int64
	if err := scanner.Scan(&u.ID, &u.Name, &u.Age, &u.Email, &created); err != nil {
		return err
	}
	u.CreatedAt = unixTime(created)
	return nil
}

// CreateUser inserts a user and returns the stored row.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO users (name, age, email) VALUES (?, ?, ?) RETURNING ` + userColumns
	var out model.User
	if err := scanUser(db.QueryRowContext(ctx, q, u.Name, u.Age, u.Email), &out); err != nil {
		return nil, mapError("create user", err)
	}
	return &out, nil
}

// GetUser fetches a single user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var u model.User
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err := scanUser(row, &u); err != nil {
		return nil, mapError("get user", err)
	}
	return &u, nil
}

// ListUsers returns users ordered by ID with a total count.
func (s *SQLiteStore) ListUsers(ctx context.Context, pq store.PageQuery) (*store.PageResult[model.User], error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, mapError("count users", err)
	}

	limit := pq.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, pq.Offset)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close() //nolint:errcheck

	items := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, mapError("scan user", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list users", err)
	}
	return &store.PageResult[model.User]{Items: items, Total: total}, nil
}

// UpdateUser overwrites the mutable fields of an existing user.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u *model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE users SET name = ?, age = ?, email = ? WHERE id = ?`, u.Name, u.Age, u.Email, u.ID)
	return mustAffect("update user", res, err)
}

// DeleteUser removes a user. Their todos are removed by the cascading
// foreign key.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return mustAffect("delete user", res, err)
}
