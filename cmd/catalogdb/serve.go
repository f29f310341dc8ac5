package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/catalogdb/internal/api"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the database if configured and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := common.GetLogger().WithComponent("serve")
			svc := newService(v)
			defer func() { _ = svc.Close() }()

			// A degraded start is fine: the installer endpoint can connect later.
			if err := svc.Initialize(ctx); err != nil {
				return err
			}
			logger.Info("database state", "state", svc.State(), "config", svc.Config())

			if v.GetString("server.installer.secret") == "" {
				logger.Warn("installer endpoint has no secret; it only accepts installs while the database is not connected")
			}
			srv := api.New(svc,
				api.WithWorkingDir(projectDir(v)),
				api.WithBulkWorkers(v.GetInt("server.bulk_workers")),
				api.WithInstallerAuth(api.VerifyConfig{
					Secret:          []byte(v.GetString("server.installer.secret")),
					AllowedIssuer:   v.GetString("server.installer.issuer"),
					AllowedAudience: v.GetString("server.installer.audience"),
					ClockSkew:       v.GetDuration("server.installer.clock_skew"),
				}),
			)
			return srv.Run(ctx, v.GetString("server.addr"))
		},
	}
	cmd.Flags().String("addr", v.GetString("server.addr"), "listen address")
	cmd.Flags().Int("bulk-workers", v.GetInt("server.bulk_workers"), "workers per bulk operation")
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("server.bulk_workers", cmd.Flags().Lookup("bulk-workers"))
	return cmd
}
