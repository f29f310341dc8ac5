package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/database"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/util"
	"github.com/spf13/viper"
)

const envPrefix = "CATALOGDB"

// newViper sets defaults and environment bindings. Besides CATALOGDB_* the
// database keys also answer to the plain DATABASE_URL and DB_* variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(common.LogFormatText))
	v.SetDefault("server.addr", constants.DefaultListenAddr)
	v.SetDefault("server.bulk_workers", constants.DefaultBulkWorkers)
	v.SetDefault("database.migrations_table", constants.DefaultSchemaMigrationsTable)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, name := range constants.DatabaseEnvNames {
		key := databaseKey(name)
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), name)
	}
	return v
}

// databaseKey maps DB_HOST to database.host and DATABASE_URL to database.url.
func databaseKey(name string) string {
	if name == constants.EnvDatabaseURL {
		return "database.url"
	}
	return "database." + strings.ToLower(strings.TrimPrefix(name, "DB_"))
}

// viperEnv serves the resolver from viper, so the config file, flags and
// environment all feed the same precedence rules.
type viperEnv struct {
	v *viper.Viper
}

func (e viperEnv) Lookup(name string) (string, bool) {
	key := databaseKey(name)
	if !e.v.IsSet(key) {
		return "", false
	}
	return e.v.GetString(key), true
}

var _ dbconfig.Env = viperEnv{}

// loadConfig reads the config file when one is given and installs the
// logger.
func loadConfig(v *viper.Viper) error {
	if path, ok := util.TrimEmptyCheck(v.GetString("config")); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	level, err := common.ParseLogLevel(v.GetString("log.level"))
	if err != nil {
		return err
	}
	format := common.LogFormat(strings.ToLower(v.GetString("log.format")))
	common.SetDefaultLogger(common.NewLoggerWithWriter(os.Stderr, level, format))
	return nil
}

// projectDir anchors relative sqlite paths: project_dir when set, else the
// directory holding the config file, else the working directory.
func projectDir(v *viper.Viper) string {
	if dir, ok := util.TrimEmptyCheck(v.GetString("project_dir")); ok {
		return dir
	}
	if path, ok := util.TrimEmptyCheck(v.GetString("config")); ok {
		if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
			return abs
		}
	}
	cwd, _ := os.Getwd()
	return cwd
}

func resolveConfig(v *viper.Viper) (dbconfig.Config, error) {
	return dbconfig.Resolve(viperEnv{v: v}, projectDir(v))
}

func newService(v *viper.Viper) *database.Service {
	return database.New(
		database.WithEnv(viperEnv{v: v}),
		database.WithWorkingDir(projectDir(v)),
		database.WithMigrationTable(v.GetString("database.migrations_table")),
	)
}
