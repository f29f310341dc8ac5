package dbconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/loykin/catalogdb/internal/constants"
)

// Env is a source of configuration values keyed by environment variable name.
type Env interface {
	Lookup(key string) (string, bool)
}

// EnvFunc adapts a lookup function to Env.
type EnvFunc func(key string) (string, bool)

func (f EnvFunc) Lookup(key string) (string, bool) { return f(key) }

// OSEnv reads the process environment.
var OSEnv Env = EnvFunc(os.LookupEnv)

// MapEnv serves values from a map.
type MapEnv map[string]string

func (m MapEnv) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// envKeys maps discrete variables onto Config keys.
var envKeys = map[string]string{
	constants.EnvType:           "type",
	constants.EnvHost:           "host",
	constants.EnvPort:           "port",
	constants.EnvUser:           "user",
	constants.EnvPassword:       "password",
	constants.EnvName:           "database",
	constants.EnvSSL:            "ssl",
	constants.EnvPoolSize:       "pool_size",
	constants.EnvConnectTimeout: "connect_timeout",
	constants.EnvAcquireTimeout: "acquire_timeout",
	constants.EnvIdleTimeout:    "idle_timeout",
	constants.EnvCharset:        "charset",
	constants.EnvTimezone:       "timezone",
	constants.EnvPath:           "path",
}

func lookup(env Env, key string) (string, bool) {
	v, ok := env.Lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Resolve builds the Config from env. DB_ENABLED=false wins over everything,
// then DATABASE_URL, then the discrete DB_* variables. Without DB_TYPE the
// backend is sqlite when DB_PATH is set and disabled otherwise.
func Resolve(env Env, cwd string) (Config, error) {
	if env == nil {
		env = OSEnv
	}

	if v, ok := lookup(env, constants.EnvEnabled); ok {
		enabled, err := parseFlag(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", constants.EnvEnabled, err)
		}
		if !enabled {
			return Disabled(), nil
		}
	}

	if raw, ok := lookup(env, constants.EnvDatabaseURL); ok {
		return ParseURL(raw, cwd)
	}

	values := make(map[string]any)
	for name, key := range envKeys {
		if v, ok := lookup(env, name); ok {
			values[key] = v
		}
	}

	var cfg Config
	if err := decode(values, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid database environment: %w", err)
	}

	if cfg.Kind == "" {
		if cfg.FilePath == "" {
			return Disabled(), nil
		}
		cfg.Kind = KindSQLite
	} else {
		kind, err := ParseKind(string(cfg.Kind))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", constants.EnvType, err)
		}
		cfg.Kind = kind
	}
	if cfg.Kind == KindDisabled {
		return Disabled(), nil
	}

	if cfg.Kind == KindSQLite {
		cfg.FilePath = ResolveFilePath(cfg.FilePath, cwd)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
