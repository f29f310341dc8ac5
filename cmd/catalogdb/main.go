package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogdb",
		Short:         "Catalog database service: schema migrations, health checks and the dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a config yaml")
	pf.String("project-dir", "", "directory relative sqlite paths resolve against")
	pf.String("log-level", v.GetString("log.level"), "log level: error, warn, info or debug")
	pf.String("log-format", v.GetString("log.format"), "log format: text, json or color")
	pf.String("database-url", "", "database connection URL (overrides DATABASE_URL)")
	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("project_dir", pf.Lookup("project-dir"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = v.BindPFlag("database.url", pf.Lookup("database-url"))

	root.AddCommand(
		newServeCmd(v),
		newMigrateCmd(v),
		newStatusCmd(v),
		newHealthCmd(v),
		newWaitCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd(newViper()).Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
