// Package postgresql is the PostgreSQL backend over a pgx pool.
package postgresql

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/store/connector"
)

// querier is satisfied by *pgxpool.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgConn struct {
	q querier
}

func (c pgConn) Query(ctx context.Context, query string, args ...any) (*connector.Result, error) {
	return run(ctx, c.q, query, args...)
}

// run rebinds placeholders and executes one statement.
func run(ctx context.Context, q querier, query string, args ...any) (*connector.Result, error) {
	query = rebind(query)

	if !connector.ReturnsRows(query) {
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return &connector.Result{RowsAffected: tag.RowsAffected()}, nil
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	fields := rows.FieldDescriptions()
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := &connector.Result{
		Columns:      make([]string, len(fields)),
		Rows:         make([]connector.Row, len(maps)),
		RowsAffected: rows.CommandTag().RowsAffected(),
	}
	for i, f := range fields {
		out.Columns[i] = f.Name
	}
	for i, m := range maps {
		out.Rows[i] = connector.Row(m)
	}
	return out, nil
}

// Adapter is the PostgreSQL implementation of connector.Adapter
type Adapter struct {
	cfg  dbconfig.Config
	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// New returns an unopened adapter for cfg.
func New(cfg dbconfig.Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Kind() dbconfig.Kind { return dbconfig.KindPostgres }

func (a *Adapter) Dialect() connector.Dialect { return Dialect{} }

func (a *Adapter) logger() *common.Logger {
	return common.GetLogger().WithBackend(string(dbconfig.KindPostgres))
}

// Initialize creates the pool and pings one connection.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pool != nil {
		return nil
	}

	pc, err := PoolConfig(a.cfg)
	if err != nil {
		return err
	}
	a.logger().Debug("opening postgres pool", "addr", a.cfg.Address(), "database", a.cfg.Database, "max_conns", pc.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return fmt.Errorf("failed to create PostgreSQL pool: %s", common.MaskError(err, a.cfg.Password))
	}

	if err := a.ping(ctx, pool); err != nil {
		pool.Close()
		a.logger().Error("postgres ping failed", "addr", a.cfg.Address(), "error", err)
		return fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	a.pool = pool
	a.logger().Info("postgres pool ready", "addr", a.cfg.Address(), "database", a.cfg.Database)
	return nil
}

func (a *Adapter) ping(ctx context.Context, pool *pgxpool.Pool) error {
	if a.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.ConnectTimeout)
		defer cancel()
	}
	var one int
	return pool.QueryRow(ctx, connector.PingQuery).Scan(&one)
}

func (a *Adapter) handle() *pgxpool.Pool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pool
}

// acquire borrows one pooled connection, waiting at most AcquireTimeout.
func (a *Adapter) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	pool := a.handle()
	if pool == nil {
		return nil, connector.ErrNotConnected
	}
	actx := ctx
	if a.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.cfg.AcquireTimeout)
		defer cancel()
	}
	conn, err := pool.Acquire(actx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire PostgreSQL connection: %w", err)
	}
	return conn, nil
}

// Query borrows a connection for one statement.
func (a *Adapter) Query(ctx context.Context, query string, args ...any) (*connector.Result, error) {
	conn, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()
	return run(ctx, conn, query, args...)
}

// Transaction borrows a connection for the whole of fn.
func (a *Adapter) Transaction(ctx context.Context, fn connector.TxFunc) error {
	conn, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(ctx, pgConn{q: tx}); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *Adapter) IsConnected() bool {
	return a.handle() != nil
}

// HealthCheck pings the pool and reports the server version.
func (a *Adapter) HealthCheck(ctx context.Context) connector.Health {
	pool := a.handle()
	if pool == nil {
		return connector.Unhealthy(a.cfg, connector.StatusDisconnected, connector.ErrNotConnected, time.Time{})
	}

	started := time.Now()
	if err := a.ping(ctx, pool); err != nil {
		return connector.Unhealthy(a.cfg, connector.StatusUnhealthy, err, started)
	}
	details := connector.DetailsFor(a.cfg)
	_ = pool.QueryRow(ctx, "SHOW server_version").Scan(&details.Version)
	details.LatencyMS = time.Since(started).Milliseconds()
	return connector.Health{Status: connector.StatusHealthy, Details: details}
}

// Close drains the pool. Calling it again is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pool == nil {
		return nil
	}
	a.pool.Close()
	a.pool = nil
	a.logger().Debug("postgres pool closed", "addr", a.cfg.Address())
	return nil
}
