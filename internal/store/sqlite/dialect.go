package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/catalogdb/internal/constants"
)

// timeLayout sorts lexically and is understood by sqlite's date functions.
const timeLayout = "2006-01-02 15:04:05.000000"

// Dialect implements connector.Dialect for SQLite
type Dialect struct{}

// MigrationTableDDL returns the bookkeeping table statement
func (Dialect) MigrationTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`, table)
}

// TimeValue stores timestamps as UTC text
func (Dialect) TimeValue(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

type pragma struct {
	name  string
	value string
}

var filePragmas = []pragma{
	{name: "foreign_keys", value: "1"},
	{name: "busy_timeout", value: fmt.Sprint(constants.SQLiteBusyTimeoutMillis)},
	{name: "journal_mode", value: "WAL"},
	{name: "synchronous", value: "NORMAL"},
}

var memoryPragmas = []pragma{
	{name: "foreign_keys", value: "1"},
	{name: "journal_mode", value: "MEMORY"},
}

// uriPath escapes the characters that would end the path of a file: URI.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// BuildDSN returns the modernc DSN for path with the connection pragmas applied.
func BuildDSN(path string) string {
	pragmas := filePragmas
	var sb strings.Builder
	if path == constants.SQLiteMemoryPath {
		pragmas = memoryPragmas
		sb.WriteString("file::memory:")
	} else {
		sb.WriteString("file:")
		sb.WriteString(uriPath.Replace(path))
	}
	sb.WriteString("?_time_format=sqlite")
	for _, p := range pragmas {
		fmt.Fprintf(&sb, "&_pragma=%s(%s)", p.name, p.value)
	}
	return sb.String()
}
