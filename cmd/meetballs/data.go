package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unisergius/meetballs/internal/model"
	"github.com/unisergius/meetballs/internal/store"
	"github.com/unisergius/meetballs/internal/store/sqlite"
)

// withSchema opens an existing database and refuses to touch data until it
// matches the declared schema.
func (a *app) withSchema(ctx context.Context, fn func(ctx context.Context, s *sqlite.SQLiteStore) error) error {
	return a.withStore(ctx, true, func(ctx context.Context, s *sqlite.SQLiteStore) error {
		drift, err := a.migrator(s).Check(ctx, model.Schema())
		if err != nil {
			return err
		}
		if !drift.Empty() {
			return fmt.Errorf("database schema is out of date (%d pending statements); run migrate or push first", len(drift.Statements))
		}
		return fn(ctx, s)
	})
}

func (a *app) demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the example insert, select, update and delete queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				return runDemo(ctx, cmd.OutOrStdout(), s)
			})
		},
	}
}

// demoRepository is what the demo script touches.
type demoRepository interface {
	store.UserRepository
	store.TodoRepository
}

func runDemo(ctx context.Context, out io.Writer, repo demoRepository) error {
	user, err := repo.CreateUser(ctx, &model.User{Name: "John", Age: 30, Email: "john@example.com"})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "New user created!")

	users, err := repo.ListUsers(ctx, store.PageQuery{})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Getting all users from the database:")
	if err := printUsers(out, users.Items); err != nil {
		return err
	}

	user.Age = 31
	if err := repo.UpdateUser(ctx, user); err != nil {
		return err
	}
	fmt.Fprintln(out, "User info updated!")

	todo, err := repo.CreateTodo(ctx, &model.Todo{Title: "Learn about migrations", UserID: user.ID})
	if err != nil {
		return err
	}
	if err := repo.SetTodoCompleted(ctx, todo.ID, true); err != nil {
		return err
	}
	todos, err := repo.ListTodosWithUsers(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Todos with their owners:")
	if err := printTodos(out, todos); err != nil {
		return err
	}

	if err := repo.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	fmt.Fprintln(out, "User deleted!")

	left, err := repo.ListTodos(ctx, &user.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Todos left for the deleted user: %d\n", len(left))
	return nil
}

func printUsers(out io.Writer, users []model.User) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tEMAIL\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", u.ID, u.Name, u.Age, u.Email, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printTodos(out io.Writer, todos []model.TodoWithUser) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tTITLE\tOWNER")
	for _, t := range todos {
		done := " "
		if t.Completed {
			done = "x"
		}
		owner := t.UserName
		if owner == "" {
			owner = strconv.FormatInt(t.UserID, 10)
		}
		fmt.Fprintf(tw, "%d\t[%s]\t%s\t%s\n", t.ID, done, t.Title, owner)
	}
	return tw.Flush()
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var u model.User
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				created, err := s.CreateUser(ctx, &u)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %d.\n", created.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&u.Name, "name", "", "user name")
	addCmd.Flags().IntVar(&u.Age, "age", 0, "user age")
	addCmd.Flags().StringVar(&u.Email, "email", "", "user email")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("email")

	var pq store.PageQuery
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				page, err := s.ListUsers(ctx, pq)
				if err != nil {
					return err
				}
				if err := printUsers(cmd.OutOrStdout(), page.Items); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d user(s)\n", len(page.Items), page.Total)
				return nil
			})
		},
	}
	listCmd.Flags().IntVar(&pq.Limit, "limit", 0, "maximum number of users (0 for all)")
	listCmd.Flags().IntVar(&pq.Offset, "offset", 0, "number of users to skip")

	rmCmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a user and their todos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				if err := s.DeleteUser(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d.\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd, rmCmd)
	return cmd
}

func (a *app) todosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todos",
		Short: "Manage todos",
	}

	var t model.Todo
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a todo for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				created, err := s.CreateTodo(ctx, &t)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created todo %d.\n", created.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&t.Title, "title", "", "todo title")
	addCmd.Flags().Int64Var(&t.UserID, "user", 0, "owner user id")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("user")

	var owner int64
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List todos with their owners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				todos, err := s.ListTodosWithUsers(ctx)
				if err != nil {
					return err
				}
				if owner > 0 {
					filtered := todos[:0]
					for _, td := range todos {
						if td.UserID == owner {
							filtered = append(filtered, td)
						}
					}
					todos = filtered
				}
				return printTodos(cmd.OutOrStdout(), todos)
			})
		},
	}
	listCmd.Flags().Int64Var(&owner, "user", 0, "only todos of this user id")

	var undo bool
	doneCmd := &cobra.Command{
		Use:   "done ID",
		Short: "Mark a todo completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				if err := s.SetTodoCompleted(ctx, id, !undo); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Todo %d completed: %t.\n", id, !undo)
				return nil
			})
		},
	}
	doneCmd.Flags().BoolVar(&undo, "undo", false, "mark the todo not completed")

	rmCmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withSchema(cmd.Context(), func(ctx context.Context, s *sqlite.SQLiteStore) error {
				if err := s.DeleteTodo(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted todo %d.\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd, doneCmd, rmCmd)
	return cmd
}
