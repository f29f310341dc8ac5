// Package store builds the backend adapter for a resolved configuration.
package store

import (
	"fmt"

	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/store/connector"
	"github.com/loykin/catalogdb/internal/store/mysql"
	"github.com/loykin/catalogdb/internal/store/postgresql"
	"github.com/loykin/catalogdb/internal/store/sqlite"
)

// Func constructs an adapter for cfg. The facade takes one so tests can
// count or fail constructions.
type Func func(cfg dbconfig.Config) (connector.Adapter, error)

// New returns the adapter matching cfg.Kind, uninitialized. A disabled
// configuration yields nil and no error; callers fall back to memory.
func New(cfg dbconfig.Config) (connector.Adapter, error) {
	switch cfg.Kind {
	case dbconfig.KindDisabled:
		return nil, nil
	case dbconfig.KindSQLite:
		return sqlite.New(cfg), nil
	case dbconfig.KindMySQL:
		return mysql.New(cfg), nil
	case dbconfig.KindPostgres:
		return postgresql.New(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", dbconfig.ErrUnsupportedKind, cfg.Kind)
	}
}

var _ Func = New
