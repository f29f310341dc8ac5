package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/migration"
	"github.com/loykin/catalogdb/internal/retry"
	"github.com/loykin/catalogdb/internal/schema"
	"github.com/loykin/catalogdb/internal/store"
	"github.com/loykin/catalogdb/internal/store/connector"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errDisabled = errors.New("database is disabled; set DATABASE_URL or DB_TYPE")

// openRunner resolves the configuration, connects with retries and returns
// the runner together with the embedded migrations for the backend.
func openRunner(ctx context.Context, v *viper.Viper, retries int) (connector.Adapter, *migration.Runner, []migration.Migration, error) {
	cfg, err := resolveConfig(v)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, nil, nil, err
	}
	adapter, err := store.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if adapter == nil {
		return nil, nil, nil, errDisabled
	}

	connect := adapter.Initialize
	if retries > 0 {
		policy := retry.DefaultRetryConfig()
		policy.MaxRetries = retries
		connect = func(ctx context.Context) error { return retry.Do(ctx, policy, adapter.Initialize) }
	}
	if err := connect(ctx); err != nil {
		return nil, nil, nil, errors.New(common.MaskError(err, cfg.Password))
	}

	list, err := schema.For(cfg.Kind)
	if err != nil {
		_ = adapter.Close()
		return nil, nil, nil, err
	}
	runner := migration.NewRunner(adapter, migration.WithTable(v.GetString("database.migrations_table")))
	return adapter, runner, list, nil
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, runner, list, err := openRunner(cmd.Context(), v, retriesFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			applied, err := runner.Run(cmd.Context(), list)
			out := cmd.OutOrStdout()
			for _, name := range applied {
				_, _ = fmt.Fprintf(out, "applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				_, _ = fmt.Fprintln(out, "schema is up to date")
			}
			return nil
		},
	}
	addRetryFlag(cmd)
	return cmd
}

type statusReport struct {
	Table   string             `json:"table"`
	Applied []migration.Record `json:"applied"`
	Pending []string           `json:"pending"`
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			adapter, runner, list, err := openRunner(ctx, v, retriesFlag(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			applied, err := runner.Applied(ctx)
			if err != nil {
				return err
			}
			pending, err := runner.Pending(ctx, list)
			if err != nil {
				return err
			}
			report := statusReport{Table: runner.Table(), Applied: applied, Pending: pending}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	addRetryFlag(cmd)
	return cmd
}

func printStatus(w io.Writer, r statusReport) {
	_, _ = fmt.Fprintf(w, "table: %s\n", r.Table)
	_, _ = fmt.Fprintf(w, "applied (%d):\n", len(r.Applied))
	for _, rec := range r.Applied {
		_, _ = fmt.Fprintf(w, "  %s  %s\n", rec.AppliedAt.Format("2006-01-02 15:04:05"), rec.Name)
	}
	_, _ = fmt.Fprintf(w, "pending (%d):\n", len(r.Pending))
	for _, name := range r.Pending {
		_, _ = fmt.Fprintf(w, "  %s\n", name)
	}
}

func addRetryFlag(cmd *cobra.Command) {
	cmd.Flags().Int("retries", retry.DefaultRetryConfig().MaxRetries, "connection retries before giving up (0 = single attempt)")
}

func retriesFlag(cmd *cobra.Command) int {
	n, _ := cmd.Flags().GetInt("retries")
	return n
}
