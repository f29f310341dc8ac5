package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLXRunner is satisfied by *sqlx.DB, *sqlx.Conn and *sqlx.Tx.
type SQLXRunner interface {
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLXConn adapts a runner to Conn.
type SQLXConn struct {
	Runner SQLXRunner
}

func (c SQLXConn) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	return RunSQLX(ctx, c.Runner, query, args...)
}

// RunSQLX executes one statement through database/sql.
func RunSQLX(ctx context.Context, r SQLXRunner, query string, args ...any) (*Result, error) {
	if !ReturnsRows(query) {
		res, err := r.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out := &Result{}
		// drivers that cannot report these return an error, leave them zero
		if n, err := res.RowsAffected(); err == nil {
			out.RowsAffected = n
		}
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
		}
		return out, nil
	}

	rows, err := r.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &Result{Columns: cols}
	for rows.Next() {
		m := make(map[string]interface{}, len(cols))
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out.Rows = append(out.Rows, Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TxBeginner is satisfied by *sqlx.DB and *sqlx.Conn.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RunSQLXTx commits when fn succeeds and rolls back when it fails or panics.
// The error from fn is returned as is.
func RunSQLXTx(ctx context.Context, b TxBeginner, fn TxFunc) error {
	tx, err := b.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, SQLXConn{Runner: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
