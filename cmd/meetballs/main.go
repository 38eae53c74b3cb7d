// Command meetballs manages the users/todos SQLite database code-first:
// it generates and applies migrations from the declared schema, pushes the
// schema directly, introspects a live database and serves the data as JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unisergius/meetballs/internal/config"
	"github.com/unisergius/meetballs/internal/logger"
	"github.com/unisergius/meetballs/internal/migrate"
	"github.com/unisergius/meetballs/internal/store"
	"github.com/unisergius/meetballs/internal/store/sqlite"
)

func main() {
	if err := newRootCmd(os.Stdout, logger.Default).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the resolved configuration into every command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *logger.StdLogger
}

func newRootCmd(out io.Writer, l *logger.StdLogger) *cobra.Command {
	a := &app{v: viper.New(), log: l}

	rootCmd := &cobra.Command{
		Use:          "meetballs",
		Short:        "Code-first schema, migrations and a users/todos API on SQLite",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Setup(a.v, a.cfgFile); err != nil {
				return err
			}
			a.cfg = config.Load(a.v)
			a.log.SetVerbose(a.cfg.Verbose)
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./meetballs.yaml when present)")
	pf.String("db", config.DefaultDBFileName, "SQLite database URL, also DB_FILE_NAME")
	pf.String("migrations", config.DefaultMigrationsDir, "migrations directory, also MEETBALLS_MIGRATIONS_DIR")
	pf.Bool("verbose", false, "enable debug logging")
	pf.Duration("shutdown-timeout", config.DefaultShutdown, "graceful shutdown timeout")

	// Viper keys use underscores so they match the env var suffix.
	bindFlag := func(viperKey, flagName string) {
		_ = a.v.BindPFlag(viperKey, pf.Lookup(flagName))
	}
	bindFlag("db_file_name", "db")
	bindFlag("migrations_dir", "migrations")
	bindFlag("verbose", "verbose")
	bindFlag("shutdown_timeout", "shutdown-timeout")

	rootCmd.AddCommand(
		a.generateCmd(),
		a.migrateCmd(),
		a.pushCmd(),
		a.introspectCmd(),
		a.verifyCmd(),
		a.demoCmd(),
		a.usersCmd(),
		a.todosCmd(),
		a.serveCmd(),
		versionCmd(),
	)

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version.String())
			return nil
		},
	}
}

// dbPath resolves the configured database URL to a file path.
func (a *app) dbPath() (string, error) {
	return store.ParseFileURL(a.cfg.DBFileName)
}

// openStore opens (creating if needed) the configured database.
func (a *app) openStore() (*sqlite.SQLiteStore, error) {
	path, err := a.dbPath()
	if err != nil {
		return nil, err
	}
	s := sqlite.New(path)
	if err := s.Open(); err != nil {
		return nil, err
	}
	a.log.Debug("opened %s", path)
	return s, nil
}

// openExisting opens the database only if its file is already there.
func (a *app) openExisting() (*sqlite.SQLiteStore, error) {
	path, err := a.dbPath()
	if err != nil {
		return nil, err
	}
	ok, err := store.CheckExists(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("database %s does not exist (state %s); run migrate or push first", path, store.StateMissing)
	}
	return a.openStore()
}

func (a *app) migrator(s store.Store) *migrate.Migrator {
	if s == nil {
		return migrate.New(nil, a.cfg.MigrationsDir, a.log)
	}
	return migrate.New(s.DB(), a.cfg.MigrationsDir, a.log)
}

// withStore opens the database, runs fn and closes it again.
func (a *app) withStore(ctx context.Context, existing bool, fn func(ctx context.Context, s *sqlite.SQLiteStore) error) error {
	open := a.openStore
	if existing {
		open = a.openExisting
	}
	s, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.log.Warn("close database: %v", err)
		}
	}()
	return fn(ctx, s)
}
