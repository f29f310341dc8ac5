// Package sqlite is the file-embedded backend. All access goes through one
// connection guarded by a mutex.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/store/connector"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite
const DriverName = "sqlite"

// Adapter is the SQLite implementation of connector.Adapter
type Adapter struct {
	cfg dbconfig.Config
	mu  sync.Mutex
	db  *sqlx.DB
}

// New returns an unopened adapter for cfg.
func New(cfg dbconfig.Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Kind() dbconfig.Kind { return dbconfig.KindSQLite }

func (a *Adapter) Dialect() connector.Dialect { return Dialect{} }

// Initialize opens the database file, creating its directory, and pings it.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}
	logger := common.GetLogger().WithBackend(string(dbconfig.KindSQLite))

	path := a.cfg.FilePath
	if path != constants.SQLiteMemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Debug("opening sqlite database", "path", path)
	db, err := sqlx.Open(DriverName, BuildDSN(path))
	if err != nil {
		return fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// one connection for the lifetime of the adapter; an in-memory
	// database disappears with its connection
	db.SetMaxOpenConns(constants.DefaultSQLitePoolSize)
	db.SetMaxIdleConns(constants.DefaultSQLitePoolSize)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := ping(ctx, db, a.cfg.ConnectTimeout); err != nil {
		_ = db.Close()
		logger.Error("sqlite ping failed", "path", path, "error", err)
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	a.db = db
	logger.Info("sqlite database ready", "path", path)
	return nil
}

func ping(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var one int
	return db.QueryRowxContext(ctx, connector.PingQuery).Scan(&one)
}

// Query runs one statement on the shared connection.
func (a *Adapter) Query(ctx context.Context, query string, args ...any) (*connector.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil, connector.ErrNotConnected
	}
	return connector.RunSQLX(ctx, a.db, query, args...)
}

// Transaction holds the connection for the whole of fn. fn must use tx;
// calling Query on the adapter from inside fn blocks.
func (a *Adapter) Transaction(ctx context.Context, fn connector.TxFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return connector.ErrNotConnected
	}
	return connector.RunSQLXTx(ctx, a.db, fn)
}

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db != nil
}

// HealthCheck pings the connection and reports the engine version.
func (a *Adapter) HealthCheck(ctx context.Context) connector.Health {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return connector.Unhealthy(a.cfg, connector.StatusDisconnected, connector.ErrNotConnected, time.Time{})
	}

	started := time.Now()
	if err := ping(ctx, a.db, a.cfg.ConnectTimeout); err != nil {
		return connector.Unhealthy(a.cfg, connector.StatusUnhealthy, err, started)
	}
	details := connector.DetailsFor(a.cfg)
	_ = a.db.QueryRowxContext(ctx, "SELECT sqlite_version()").Scan(&details.Version)
	details.LatencyMS = time.Since(started).Milliseconds()
	return connector.Health{Status: connector.StatusHealthy, Details: details}
}

// Close releases the connection. Calling it again is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	common.GetLogger().WithBackend(string(dbconfig.KindSQLite)).Debug("sqlite database closed", "path", a.cfg.FilePath)
	return nil
}
