// Package model holds the application's entities and the schema they are
// stored in.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is returned when an entity fails validation.
var ErrInvalid = errors.New("invalid")

// User is a row of the users table.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Todo is a row of the todos table.
type Todo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TodoWithUser is a todo joined with the name of its owner.
type TodoWithUser struct {
	Todo
	UserName string `json:"user_name"`
}

// Validate checks the fields a caller must provide.
func (u *User) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	switch {
	case u.Name == "":
		return fmt.Errorf("%w: user name is required", ErrInvalid)
	case u.Age < 0 || u.Age > 150:
		return fmt.Errorf("%w: user age %d out of range", ErrInvalid, u.Age)
	case !strings.Contains(u.Email, "@"):
		return fmt.Errorf("%w: user email %q is not an address", ErrInvalid, u.Email)
	}
	return nil
}

// Validate checks the fields a caller must provide.
func (t *Todo) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("%w: todo title is required", ErrInvalid)
	}
	if t.UserID <= 0 {
		return fmt.Errorf("%w: todo needs an owner", ErrInvalid)
	}
	return nil
}
