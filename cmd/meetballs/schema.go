package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/unisergius/meetballs/internal/migrate"
	"github.com/unisergius/meetballs/internal/model"
	"github.com/unisergius/meetballs/internal/schema"
	"github.com/unisergius/meetballs/internal/store"
	"github.com/unisergius/meetballs/internal/store/sqlite"
)

func (a *app) generateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a migration for the changes in the declared schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.migrator(nil).Generate(model.Schema(), name)
			if errors.Is(err, migrate.ErrNoChanges) {
				fmt.Fprintln(cmd.OutOrStdout(), "No schema changes, nothing to generate.")
				return nil
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", gen.Path)
			for _, w := range gen.Up.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "migration name (derived from the changes when empty)")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), false, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				results, err := a.migrator(s).Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", len(results))
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), true, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				r, err := a.migrator(s).Down(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s.\n", r.Source.Path)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), false, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				m := a.migrator(s)
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				state, err := m.State(ctx)
				if err != nil {
					return err
				}
				return printStatus(cmd.OutOrStdout(), statuses, state)
			})
		},
	}

	cmd.AddCommand(downCmd, statusCmd)
	return cmd
}

func printStatus(out io.Writer, statuses []*goose.MigrationStatus, state store.StoreState) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if st.State == goose.StateApplied {
			applied = st.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, filepath.Base(st.Source.Path))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database state: %s\n", state)
	return nil
}

func (a *app) pushCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Apply the declared schema directly, without migration files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), false, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				out := cmd.OutOrStdout()
				plan, err := a.migrator(s).Push(ctx, model.Schema(), force)
				if errors.Is(err, migrate.ErrDestructive) {
					fmt.Fprintln(out, "Push refused, the changes may lose data:")
					for _, w := range plan.Warnings {
						fmt.Fprintf(out, "  - %s\n", w)
					}
					return fmt.Errorf("%w (--force)", err)
				}
				if err != nil {
					return err
				}
				if plan.Empty() {
					fmt.Fprintln(out, "No changes, database matches the schema.")
					return nil
				}
				for _, stmt := range plan.Statements {
					fmt.Fprintln(out, stmt)
				}
				fmt.Fprintf(out, "Applied %d statement(s).\n", len(plan.Statements))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "apply changes that may lose data")
	return cmd
}

func (a *app) introspectCmd() *cobra.Command {
	var (
		format string
		pkg    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read the schema of a live database (json, go or sql)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), true, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				live, err := a.migrator(s).Introspect(ctx)
				if err != nil {
					return err
				}
				var text string
				switch format {
				case "json":
					data, err := live.Marshal()
					if err != nil {
						return err
					}
					text = string(data) + "\n"
				case "go":
					text = schema.GoSource(pkg, live)
				case "sql":
					text = strings.Join(live.SQL(), "\n") + "\n"
				default:
					return fmt.Errorf("unknown format %q (json, go, sql)", format)
				}
				if output == "" {
					_, err = io.WriteString(cmd.OutOrStdout(), text)
					return err
				}
				if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				a.log.Info("wrote %s", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, go or sql")
	cmd.Flags().StringVar(&pkg, "package", "model", "package name for --format go")
	cmd.Flags().StringVarP(&output, "out", "o", "", "write to a file instead of stdout")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check database integrity, migration state and schema drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), true, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				out := cmd.OutOrStdout()
				if err := s.IntegrityCheck(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Integrity: ok")

				m := a.migrator(s)
				state, err := m.State(ctx)
				if err != nil {
					return err
				}
				version, err := m.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Migrations: %s (version %d)\n", state, version)

				drift, err := m.Check(ctx, model.Schema())
				if err != nil {
					return err
				}
				if drift.Empty() {
					fmt.Fprintln(out, "Schema: matches the declared schema")
					return nil
				}
				fmt.Fprintln(out, "Schema: drift detected, the database needs:")
				for _, stmt := range drift.Statements {
					fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(stmt, "\n", "\n  "))
				}
				return errors.New("database schema differs from the declared schema")
			})
		},
	}
}
