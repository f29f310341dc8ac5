package postgresql

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/dbconfig"
)

// Dialect implements connector.Dialect for PostgreSQL
type Dialect struct{}

// MigrationTableDDL returns the bookkeeping table statement
func (Dialect) MigrationTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`, table)
}

// TimeValue passes UTC timestamps through to pgx
func (Dialect) TimeValue(t time.Time) any {
	return t.UTC()
}

// ConnString renders the libpq style URL for cfg.
func ConnString(cfg dbconfig.Config) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Address(),
		Path:   "/" + cfg.Database,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	q := url.Values{}
	if cfg.TLS {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// PoolConfig builds the pgxpool configuration for cfg.
func PoolConfig(cfg dbconfig.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL configuration: %s", common.MaskError(err, cfg.Password))
	}
	if cfg.PoolSize > 0 {
		pc.MaxConns = int32(cfg.PoolSize)
	}
	pc.MaxConnIdleTime = cfg.IdleTimeout
	pc.MaxConnLifetime = constants.DefaultMaxConnLifetime
	pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	pc.ConnConfig.RuntimeParams["application_name"] = constants.ApplicationName
	if cfg.Timezone != "" {
		pc.ConnConfig.RuntimeParams["timezone"] = cfg.Timezone
	}
	if cfg.Charset != "" {
		pc.ConnConfig.RuntimeParams["client_encoding"] = cfg.Charset
	}
	return pc, nil
}
