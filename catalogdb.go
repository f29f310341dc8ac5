package catalogdb

import (
	"context"

	"github.com/loykin/catalogdb/internal/api"
	"github.com/loykin/catalogdb/internal/database"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/migration"
	"github.com/loykin/catalogdb/internal/schema"
	"github.com/loykin/catalogdb/internal/store"
	"github.com/loykin/catalogdb/internal/store/connector"
)

// Re-export commonly used types for public API

// Config describes one database backend.
type Config = dbconfig.Config

type Kind = dbconfig.Kind

const (
	KindDisabled = dbconfig.KindDisabled
	KindSQLite   = dbconfig.KindSQLite
	KindMySQL    = dbconfig.KindMySQL
	KindPostgres = dbconfig.KindPostgres
)

// Env is a source of DATABASE_URL and DB_* values.
type Env = dbconfig.Env

type MapEnv = dbconfig.MapEnv

// ValidationError lists every violated configuration constraint.
type ValidationError = dbconfig.ValidationError

var (
	ErrUnsupportedKind = dbconfig.ErrUnsupportedKind
	ErrNotConnected    = connector.ErrNotConnected
	ErrNotInitialized  = database.ErrNotInitialized
)

// Adapter is the uniform contract every backend implements.
type Adapter = connector.Adapter

type (
	Conn   = connector.Conn
	Result = connector.Result
	Row    = connector.Row
	Health = connector.Health
)

// Service is the process wide database facade.
type Service = database.Service

type Option = database.Option

var (
	WithEnv            = database.WithEnv
	WithWorkingDir     = database.WithWorkingDir
	WithMigrationTable = database.WithMigrationTable
	WithLogger         = database.WithLogger
)

// New returns an uninitialized service; nothing connects until Initialize.
func New(opts ...Option) *Service { return database.New(opts...) }

// Resolve reads the configuration from env, anchoring relative sqlite paths at cwd.
func Resolve(env Env, cwd string) (Config, error) { return dbconfig.Resolve(env, cwd) }

// ParseURL parses a DATABASE_URL style connection string.
func ParseURL(raw, cwd string) (Config, error) { return dbconfig.ParseURL(raw, cwd) }

// NewAdapter builds the unconnected adapter for cfg; a disabled cfg yields nil.
func NewAdapter(cfg Config) (Adapter, error) { return store.New(cfg) }

// Migration is one named, ordered schema change.
type Migration = migration.Migration

type MigrationRecord = migration.Record

// Migrate applies the embedded catalog schema through an initialized adapter
// and returns the names applied by this call.
func Migrate(ctx context.Context, adapter Adapter) ([]string, error) {
	list, err := schema.For(adapter.Kind())
	if err != nil {
		return nil, err
	}
	return migration.NewRunner(adapter).Run(ctx, list)
}

// Server is the HTTP API over a Service.
type Server = api.Server

type ServerOption = api.Option

// NewServer wires the HTTP API to svc.
func NewServer(svc *Service, opts ...ServerOption) *Server { return api.New(svc, opts...) }
