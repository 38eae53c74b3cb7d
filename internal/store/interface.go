package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/unisergius/meetballs/internal/model"
)

// StoreState represents the initialization state of the datastore.
type StoreState int

const (
	StateMissing       StoreState = iota // File doesn't exist
	StateUninitialized                   // File exists but no migration was applied
	StatePending                         // Migrations exist that are not applied yet
	StateReady                           // Every migration is applied
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrReference = errors.New("referenced row does not exist")
)

// Store defines the datastore lifecycle contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens the datastore connection
	Open() error

	// Close closes the datastore connection
	Close() error

	// DB returns the open connection pool for migrations and introspection
	DB() *sql.DB
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}

// UserRepository is persistence for users. Validation happens before any
// statement is sent.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, pq PageQuery) (*PageResult[model.User], error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id int64) error
}

// TodoRepository is persistence for todos.
type TodoRepository interface {
	CreateTodo(ctx context.Context, t *model.Todo) (*model.Todo, error)
	GetTodo(ctx context.Context, id int64) (*model.Todo, error)
	// ListTodos returns all todos, or only those of userID when it is set.
	ListTodos(ctx context.Context, userID *int64) ([]model.Todo, error)
	ListTodosWithUsers(ctx context.Context) ([]model.TodoWithUser, error)
	SetTodoCompleted(ctx context.Context, id int64, completed bool) error
	DeleteTodo(ctx context.Context, id int64) error
}
