package dbconfig

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
)

// queryAliases maps accepted query parameter names onto Config keys.
var queryAliases = map[string]string{
	"ssl":              "ssl",
	"tls":              "ssl",
	"sslmode":          "ssl",
	"charset":          "charset",
	"timezone":         "timezone",
	"tz":               "timezone",
	"pool_size":        "pool_size",
	"pool":             "pool_size",
	"pool_max":         "pool_size",
	"connection_limit": "pool_size",
	"connectionlimit":  "pool_size",
	"connect_timeout":  "connect_timeout",
	"connecttimeout":   "connect_timeout",
	"acquire_timeout":  "acquire_timeout",
	"acquiretimeout":   "acquire_timeout",
	"idle_timeout":     "idle_timeout",
	"idletimeout":      "idle_timeout",
}

// ParseURL turns a connection string into a Config. For sqlite URLs the
// %kernel.project_dir% token and relative paths are resolved against cwd.
func ParseURL(raw, cwd string) (Config, error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" {
		return Config{}, fmt.Errorf("connection string %q has no scheme", common.MaskSensitiveData(raw))
	}
	kind, err := ParseKind(scheme)
	if err != nil {
		return Config{}, fmt.Errorf("connection string scheme %q: %w", scheme, ErrUnsupportedKind)
	}

	var cfg Config
	switch kind {
	case KindDisabled:
		return Disabled(), nil
	case KindSQLite:
		cfg, err = parseSQLiteURL(rest, cwd)
	default:
		cfg, err = parseServerURL(kind, raw)
	}
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func parseSQLiteURL(rest, cwd string) (Config, error) {
	path, query, _ := strings.Cut(rest, "?")
	path = strings.TrimPrefix(path, "//")

	cfg := Config{Kind: KindSQLite}
	if err := applyQuery(query, &cfg); err != nil {
		return Config{}, err
	}

	// the placeholder is not a valid escape sequence, unescape around it
	parts := strings.Split(path, constants.ProjectDirPlaceholder)
	for i, part := range parts {
		unescaped, err := url.PathUnescape(part)
		if err != nil {
			return Config{}, fmt.Errorf("invalid sqlite path %q: %w", path, err)
		}
		parts[i] = unescaped
	}
	cfg.FilePath = ResolveFilePath(strings.Join(parts, constants.ProjectDirPlaceholder), cwd)
	return cfg, nil
}

// ResolveFilePath substitutes the project directory token and anchors
// relative paths at cwd. ":memory:" is passed through.
func ResolveFilePath(path, cwd string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.TrimPrefix(path, "/") == constants.SQLiteMemoryPath {
		return constants.SQLiteMemoryPath
	}
	if strings.Contains(path, constants.ProjectDirPlaceholder) {
		path = strings.TrimPrefix(path, "/")
		path = strings.ReplaceAll(path, constants.ProjectDirPlaceholder, cwd)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path)
}

func parseServerURL(kind Kind, raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		// url errors echo the input, password included
		return Config{}, fmt.Errorf("invalid connection string: %s", common.MaskSensitiveData(err.Error()))
	}

	cfg := Config{
		Kind:     kind,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q in connection string", p)
		}
		cfg.Port = port
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	if err := applyQuery(u.RawQuery, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyQuery(rawQuery string, cfg *Config) error {
	if rawQuery == "" {
		return nil
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("invalid connection string parameters: %w", err)
	}
	values := make(map[string]any)
	for name, vals := range q {
		key, ok := queryAliases[strings.ToLower(name)]
		if !ok || len(vals) == 0 {
			continue
		}
		values[key] = vals[len(vals)-1]
	}
	if err := decode(values, cfg); err != nil {
		return fmt.Errorf("invalid connection string parameters: %w", err)
	}
	return nil
}
