package mysql

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/loykin/catalogdb/internal/dbconfig"
)

// Dialect implements connector.Dialect for MySQL and MariaDB
type Dialect struct{}

// MigrationTableDDL returns the bookkeeping table statement
func (Dialect) MigrationTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name VARCHAR(255) NOT NULL PRIMARY KEY,
		applied_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB`, table)
}

// TimeValue passes UTC timestamps through; the driver formats them using Loc
func (Dialect) TimeValue(t time.Time) any {
	return t.UTC()
}

// BuildDSN renders the driver DSN for cfg. Numeric offsets become the
// session time_zone with UTC on the client side; IANA names become Loc.
func BuildDSN(cfg dbconfig.Config) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Address()
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	mc.Params = map[string]string{}
	if cfg.Charset != "" {
		mc.Params["charset"] = cfg.Charset
	}

	if offset, ok := sessionOffset(cfg.Timezone); ok {
		mc.Loc = time.UTC
		mc.Params["time_zone"] = "'" + offset + "'"
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return "", fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		mc.Loc = loc
	}

	if cfg.TLS {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN(), nil
}

// sessionOffset returns the numeric offset for tz when it has one.
func sessionOffset(tz string) (string, bool) {
	tz = strings.TrimSpace(tz)
	switch strings.ToUpper(tz) {
	case "", "UTC", "Z":
		return "+00:00", true
	}
	if len(tz) == 6 && (tz[0] == '+' || tz[0] == '-') && tz[3] == ':' {
		return tz, true
	}
	return "", false
}
