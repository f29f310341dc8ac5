package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errUnhealthy = errors.New("database is not healthy")

func newHealthCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Initialize the database service once and print its health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc := newService(v)
			defer func() { _ = svc.Close() }()

			if err := svc.Initialize(ctx); err != nil {
				return err
			}
			h := svc.HealthCheck(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(h); err != nil {
				return err
			}
			if !h.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}
}
