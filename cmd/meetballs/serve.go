package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unisergius/meetballs/internal/config"
	"github.com/unisergius/meetballs/internal/server"
	"github.com/unisergius/meetballs/internal/store/sqlite"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the users and todos API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withStore(ctx, true, func(ctx context.Context, s *sqlite.SQLiteStore) error {
				m := a.migrator(s)
				if state, err := m.State(ctx); err == nil {
					a.log.Info("database state: %s", state)
				}
				srv, err := server.New(s, m, server.Config{
					Port:            a.cfg.Port,
					AdminPort:       a.cfg.AdminPort,
					ShutdownTimeout: a.cfg.ShutdownTimeout,
					Version:         config.Version.String(),
				}, a.log)
				if err != nil {
					return err
				}
				return srv.Run(ctx)
			})
		},
	}

	cmd.Flags().Int("port", config.DefaultPort, "public HTTP port")
	cmd.Flags().Int("admin-port", config.DefaultAdminPort, "admin HTTP port (JSON, loopback only)")
	_ = a.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = a.v.BindPFlag("admin_port", cmd.Flags().Lookup("admin-port"))
	return cmd
}
