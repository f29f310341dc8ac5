package dbconfig

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDisabledFlagWins(t *testing.T) {
	env := MapEnv{
		"DB_ENABLED":   "false",
		"DB_HOST":      "db",
		"DB_USER":      "shop",
		"DB_PATH":      "/tmp/x.db",
		"DATABASE_URL": "mysql://u:p@h/db",
	}
	cfg, err := Resolve(env, "/srv")
	require.NoError(t, err)
	assert.Equal(t, KindDisabled, cfg.Kind)
	assert.Empty(t, cfg.Validate())
}

func TestResolveNothingSetIsDisabled(t *testing.T) {
	cfg, err := Resolve(MapEnv{}, "/srv")
	require.NoError(t, err)
	assert.Equal(t, KindDisabled, cfg.Kind)
}

func TestResolveURLTakesPrecedence(t *testing.T) {
	env := MapEnv{
		"DATABASE_URL": "postgres://shop:pw@pg:5432/catalog",
		"DB_TYPE":      "mysql",
		"DB_HOST":      "ignored",
	}
	cfg, err := Resolve(env, "")
	require.NoError(t, err)
	assert.Equal(t, KindPostgres, cfg.Kind)
	assert.Equal(t, "pg", cfg.Host)
}

func TestResolveBlankURLFallsBackToDiscrete(t *testing.T) {
	env := MapEnv{
		"DATABASE_URL":       "   ",
		"DB_TYPE":            "mariadb",
		"DB_HOST":            " db.internal ",
		"DB_USER":            "shop",
		"DB_PASSWORD":        " spaced ",
		"DB_NAME":            "catalog",
		"DB_SSL":             "yes",
		"DB_POOL_SIZE":       "20",
		"DB_CONNECT_TIMEOUT": "1500",
		"DB_ACQUIRE_TIMEOUT": "3s",
		"DB_TIMEZONE":        "Europe/Berlin",
	}
	cfg, err := Resolve(env, "")
	require.NoError(t, err)

	assert.Equal(t, KindMySQL, cfg.Kind)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "spaced", cfg.Password)
	assert.Equal(t, "catalog", cfg.Database)
	assert.True(t, cfg.TLS)
	assert.Equal(t, 20, cfg.PoolSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.ConnectTimeout)
	assert.Equal(t, 3*time.Second, cfg.AcquireTimeout)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "utf8mb4", cfg.Charset)
}

func TestResolveSQLiteFromPath(t *testing.T) {
	cwd := t.TempDir()
	cfg, err := Resolve(MapEnv{"DB_PATH": "%kernel.project_dir%/var/data.db"}, cwd)
	require.NoError(t, err)
	assert.Equal(t, KindSQLite, cfg.Kind)
	assert.Equal(t, filepath.Join(cwd, "var", "data.db"), cfg.FilePath)

	cfg, err = Resolve(MapEnv{"DB_TYPE": "sqlite", "DB_PATH": "catalog.db"}, cwd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "catalog.db"), cfg.FilePath)
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve(MapEnv{"DB_TYPE": "oracle"}, "")
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = Resolve(MapEnv{"DB_ENABLED": "maybe"}, "")
	assert.Error(t, err)

	_, err = Resolve(MapEnv{"DB_TYPE": "postgres", "DB_PORT": "abc"}, "")
	assert.Error(t, err)
}

func TestResolveInvalidButParsable(t *testing.T) {
	cfg, err := Resolve(MapEnv{"DB_TYPE": "postgres"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Validate())
}

func TestEnvFunc(t *testing.T) {
	env := EnvFunc(func(k string) (string, bool) {
		if k == "DB_TYPE" {
			return "disabled", true
		}
		return "", false
	})
	cfg, err := Resolve(env, "")
	require.NoError(t, err)
	assert.Equal(t, KindDisabled, cfg.Kind)
}
