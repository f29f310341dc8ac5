// Package dbconfig resolves the database configuration from a connection
// string or discrete environment variables.
package dbconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/util"
)

// Kind identifies the backend a Config points at.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindMySQL    Kind = "mysql"
	KindPostgres Kind = "postgres"
	KindDisabled Kind = "disabled"
)

// ErrUnsupportedKind is returned for backend kinds or URL schemes that no
// adapter implements.
var ErrUnsupportedKind = errors.New("unsupported database backend")

// ParseKind normalizes a backend name or URL scheme.
func ParseKind(s string) (Kind, error) {
	switch util.TrimAndLower(s) {
	case "sqlite", "sqlite3", "file":
		return KindSQLite, nil
	case "mysql", "mariadb":
		return KindMySQL, nil
	case "postgres", "postgresql", "pg", "pgsql":
		return KindPostgres, nil
	case "disabled", "none", "memory", "off":
		return KindDisabled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// IsClientServer reports whether k talks to a database server over the network.
func (k Kind) IsClientServer() bool {
	return k == KindMySQL || k == KindPostgres
}

// Config is the resolved database configuration. It is built once at startup
// and passed by value afterwards.
type Config struct {
	Kind           Kind          `mapstructure:"type"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password" trim:"-"`
	Database       string        `mapstructure:"database"`
	FilePath       string        `mapstructure:"path"`
	PoolSize       int           `mapstructure:"pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	TLS            bool          `mapstructure:"ssl"`
	Charset        string        `mapstructure:"charset"`
	Timezone       string        `mapstructure:"timezone"`
}

// Disabled returns the configuration that turns persistence off.
func Disabled() Config {
	return Config{Kind: KindDisabled}
}

// ApplyDefaults fills unset fields with the per-backend defaults.
func (c *Config) ApplyDefaults() {
	util.TrimStructFields(c)
	switch c.Kind {
	case KindSQLite:
		if c.PoolSize == 0 {
			c.PoolSize = constants.DefaultSQLitePoolSize
		}
	case KindMySQL:
		if c.Port == 0 {
			c.Port = constants.DefaultMySQLPort
		}
		if c.Charset == "" {
			c.Charset = constants.DefaultMySQLCharset
		}
	case KindPostgres:
		if c.Port == 0 {
			c.Port = constants.DefaultPostgresPort
		}
	case KindDisabled:
		return
	}
	if c.Kind.IsClientServer() && c.PoolSize == 0 {
		c.PoolSize = constants.DefaultPoolSize
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = constants.DefaultAcquireTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = constants.DefaultIdleTimeout
	}
	c.Timezone = util.TrimWithDefault(c.Timezone, constants.DefaultTimezone)
}

// Validate returns every violated constraint. An empty result means the
// configuration is usable.
func (c Config) Validate() []string {
	var problems []string
	switch c.Kind {
	case KindDisabled:
		return nil
	case KindSQLite:
		if strings.TrimSpace(c.FilePath) == "" {
			problems = append(problems, "file path is required for sqlite backend")
		}
	case KindMySQL, KindPostgres:
		if strings.TrimSpace(c.Host) == "" {
			problems = append(problems, fmt.Sprintf("host is required for %s backend", c.Kind))
		}
		if c.Port <= 0 || c.Port > 65535 {
			problems = append(problems, fmt.Sprintf("port must be between 1 and 65535 for %s backend", c.Kind))
		}
		if strings.TrimSpace(c.User) == "" {
			problems = append(problems, fmt.Sprintf("user is required for %s backend", c.Kind))
		}
	default:
		return []string{fmt.Sprintf("unsupported backend kind %q", c.Kind)}
	}
	if c.PoolSize < 0 {
		problems = append(problems, "pool size must not be negative")
	}
	if c.ConnectTimeout < 0 || c.AcquireTimeout < 0 || c.IdleTimeout < 0 {
		problems = append(problems, "timeouts must not be negative")
	}
	return problems
}

// ValidationError lists the constraints a Config violates.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid database configuration: " + strings.Join(e.Violations, "; ")
}

// Check is Validate folded into an error.
func (c Config) Check() error {
	if problems := c.Validate(); len(problems) > 0 {
		return &ValidationError{Violations: problems}
	}
	return nil
}

// Address returns host:port for client/server backends.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String describes the target with the password masked.
func (c Config) String() string {
	switch c.Kind {
	case KindDisabled, "":
		return string(KindDisabled)
	case KindSQLite:
		return "sqlite:" + c.FilePath
	}
	u := url.URL{Scheme: string(c.Kind), Host: c.Address(), Path: "/" + c.Database}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, common.MaskedValue)
		} else {
			u.User = url.User(c.User)
		}
	}
	return u.String()
}

// LogValue keeps the password out of structured logs.
func (c Config) LogValue() slog.Value {
	return slog.StringValue(c.String())
}
