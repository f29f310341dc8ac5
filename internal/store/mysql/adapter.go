// Package mysql is the MySQL/MariaDB backend over a database/sql pool.
package mysql

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/store/connector"
)

// DriverName is the database/sql driver registered by go-sql-driver/mysql
const DriverName = "mysql"

// openDB is replaced in tests to hand out a sqlmock connection.
var openDB = func(dsn string) (*sqlx.DB, error) {
	return sqlx.Open(DriverName, dsn)
}

// Adapter is the MySQL implementation of connector.Adapter
type Adapter struct {
	cfg dbconfig.Config
	mu  sync.RWMutex
	db  *sqlx.DB
}

// New returns an unopened adapter for cfg.
func New(cfg dbconfig.Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Kind() dbconfig.Kind { return dbconfig.KindMySQL }

func (a *Adapter) Dialect() connector.Dialect { return Dialect{} }

func (a *Adapter) logger() *common.Logger {
	return common.GetLogger().WithBackend(string(dbconfig.KindMySQL))
}

// Initialize creates the pool and pings one connection.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}

	dsn, err := BuildDSN(a.cfg)
	if err != nil {
		return err
	}
	a.logger().Debug("opening mysql pool", "addr", a.cfg.Address(), "database", a.cfg.Database, "pool_size", a.cfg.PoolSize)

	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.PoolSize)
	db.SetMaxIdleConns(a.cfg.PoolSize)
	db.SetConnMaxIdleTime(a.cfg.IdleTimeout)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)

	if err := a.ping(ctx, db); err != nil {
		_ = db.Close()
		a.logger().Error("mysql ping failed", "addr", a.cfg.Address(), "error", err)
		return fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	a.db = db
	a.logger().Info("mysql pool ready", "addr", a.cfg.Address(), "database", a.cfg.Database)
	return nil
}

func (a *Adapter) ping(ctx context.Context, db *sqlx.DB) error {
	if a.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.ConnectTimeout)
		defer cancel()
	}
	var one int
	return db.QueryRowxContext(ctx, connector.PingQuery).Scan(&one)
}

func (a *Adapter) handle() *sqlx.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

// acquire borrows one pooled connection, waiting at most AcquireTimeout.
func (a *Adapter) acquire(ctx context.Context) (*sqlx.Conn, error) {
	db := a.handle()
	if db == nil {
		return nil, connector.ErrNotConnected
	}
	actx := ctx
	if a.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.cfg.AcquireTimeout)
		defer cancel()
	}
	conn, err := db.Connx(actx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire MySQL connection: %w", err)
	}
	return conn, nil
}

// Query borrows a connection for one statement.
func (a *Adapter) Query(ctx context.Context, query string, args ...any) (*connector.Result, error) {
	conn, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	return connector.RunSQLX(ctx, conn, query, args...)
}

// Transaction borrows a connection for the whole of fn.
func (a *Adapter) Transaction(ctx context.Context, fn connector.TxFunc) error {
	conn, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return connector.RunSQLXTx(ctx, conn, fn)
}

func (a *Adapter) IsConnected() bool {
	return a.handle() != nil
}

// HealthCheck pings the pool and reports the server version.
func (a *Adapter) HealthCheck(ctx context.Context) connector.Health {
	db := a.handle()
	if db == nil {
		return connector.Unhealthy(a.cfg, connector.StatusDisconnected, connector.ErrNotConnected, time.Time{})
	}

	started := time.Now()
	if err := a.ping(ctx, db); err != nil {
		return connector.Unhealthy(a.cfg, connector.StatusUnhealthy, err, started)
	}
	details := connector.DetailsFor(a.cfg)
	_ = db.QueryRowxContext(ctx, "SELECT VERSION()").Scan(&details.Version)
	details.LatencyMS = time.Since(started).Milliseconds()
	return connector.Health{Status: connector.StatusHealthy, Details: details}
}

// Close drains the pool. Calling it again is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("failed to close MySQL pool: %w", err)
	}
	a.logger().Debug("mysql pool closed", "addr", a.cfg.Address())
	return nil
}
