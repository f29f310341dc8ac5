// Package connector defines the contract shared by every database backend.
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/loykin/catalogdb/internal/dbconfig"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is the outcome of a single statement. Reads fill Columns and Rows,
// writes fill RowsAffected and, where the driver reports one, LastInsertID.
type Result struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         []Row    `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	LastInsertID int64    `json:"last_insert_id,omitempty"`
}

// First returns the first row of a read result.
func (r *Result) First() (Row, bool) {
	if r == nil || len(r.Rows) == 0 {
		return nil, false
	}
	return r.Rows[0], true
}

// Conn executes statements. Placeholders are positional '?' for every backend.
// A '?' inside a quoted string, a quoted identifier or a comment is not a
// placeholder. On PostgreSQL "??" is a literal question mark, which is how
// the jsonb operators are written.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) (*Result, error)
}

// TxFunc runs inside a transaction; tx is bound to the transaction's connection.
type TxFunc func(ctx context.Context, tx Conn) error

// Dialect holds the per-backend SQL the shared components need.
type Dialect interface {
	// MigrationTableDDL creates the bookkeeping table if it does not exist.
	MigrationTableDDL(table string) string
	// TimeValue converts a timestamp to the driver argument stored in the database.
	TimeValue(t time.Time) any
}

// Adapter wraps one live connection or pool handle.
type Adapter interface {
	Conn
	Initialize(ctx context.Context) error
	Transaction(ctx context.Context, fn TxFunc) error
	// IsConnected reports whether a handle is held. It does not ping.
	IsConnected() bool
	HealthCheck(ctx context.Context) Health
	Close() error
	Kind() dbconfig.Kind
	Dialect() Dialect
}

// ErrNotConnected is returned by adapters that hold no handle.
var ErrNotConnected = errors.New("database adapter is not connected")

// PingQuery is the liveness check every backend runs.
const PingQuery = "SELECT 1"
