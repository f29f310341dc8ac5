// Package migration applies an ordered list of named schema migrations
// exactly once, recording each in a bookkeeping table in the target database.
package migration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/store/connector"
)

var (
	ErrDuplicateMigration = errors.New("duplicate migration name")
	ErrInvalidTable       = errors.New("invalid bookkeeping table name")
)

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Migration is one named step. Statements run in order inside one transaction.
type Migration struct {
	Name       string
	Statements []string
}

// Record is one row of the bookkeeping table.
type Record struct {
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// Runner applies migrations through an initialized adapter.
type Runner struct {
	adapter connector.Adapter
	table   string
	now     func() time.Time
}

type Option func(*Runner)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(r *Runner) {
		if name = strings.TrimSpace(name); name != "" {
			r.table = name
		}
	}
}

// WithClock sets the source of applied_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(adapter connector.Adapter, opts ...Option) *Runner {
	r := &Runner{
		adapter: adapter,
		table:   constants.DefaultSchemaMigrationsTable,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the bookkeeping table name.
func (r *Runner) Table() string { return r.table }

func (r *Runner) ready() error {
	if r.adapter == nil || !r.adapter.IsConnected() {
		return connector.ErrNotConnected
	}
	if !tableNameRegex.MatchString(r.table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, r.table)
	}
	return nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	if _, err := r.adapter.Query(ctx, r.adapter.Dialect().MigrationTableDDL(r.table)); err != nil {
		return fmt.Errorf("failed to create %s: %w", r.table, err)
	}
	return nil
}

// checkNames rejects empty and repeated names before anything runs.
func checkNames(list []Migration) error {
	seen := make(map[string]struct{}, len(list))
	for i, m := range list {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("migration at position %d has no name", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateMigration, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Run applies every migration in list whose name is not yet recorded, in
// list order, and returns the names it applied. The first failure stops the
// run; migrations recorded before it stay recorded.
func (r *Runner) Run(ctx context.Context, list []Migration) ([]string, error) {
	if err := checkNames(list); err != nil {
		return nil, err
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.appliedNames(ctx)
	if err != nil {
		return nil, err
	}

	logger := common.GetLogger().WithComponent("migration").WithBackend(string(r.adapter.Kind()))
	done := make([]string, 0, len(list))
	for _, m := range list {
		mlog := logger.WithMigration(m.Name)
		if _, ok := applied[m.Name]; ok {
			mlog.Debug("migration already applied")
			continue
		}
		started := time.Now()
		if err := r.apply(ctx, m); err != nil {
			mlog.Error("migration failed", "error", err)
			return done, fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		mlog.Info("migration applied", "statements", len(m.Statements), "duration", time.Since(started))
		done = append(done, m.Name)
	}
	if len(done) == 0 {
		logger.Debug("schema up to date", "migrations", len(list))
	}
	return done, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	insert := fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", r.table)
	appliedAt := r.adapter.Dialect().TimeValue(r.now())
	return r.adapter.Transaction(ctx, func(ctx context.Context, tx connector.Conn) error {
		for i, stmt := range m.Statements {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.Query(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		_, err := tx.Query(ctx, insert, m.Name, appliedAt)
		return err
	})
}

func (r *Runner) appliedNames(ctx context.Context) (map[string]struct{}, error) {
	res, err := r.adapter.Query(ctx, fmt.Sprintf("SELECT name FROM %s", r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.table, err)
	}
	names := make(map[string]struct{}, len(res.Rows))
	for _, row := range res.Rows {
		names[row.String("name")] = struct{}{}
	}
	return names, nil
}

// Applied returns the recorded migrations ordered by application time.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	res, err := r.adapter.Query(ctx, fmt.Sprintf("SELECT name, applied_at FROM %s ORDER BY applied_at, name", r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.table, err)
	}
	out := make([]Record, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, Record{Name: row.String("name"), AppliedAt: row.Time("applied_at")})
	}
	return out, nil
}

// Pending returns the names in list that have no record, in list order.
func (r *Runner) Pending(ctx context.Context, list []Migration) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.appliedNames(ctx)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, m := range list {
		if _, ok := applied[m.Name]; !ok {
			pending = append(pending, m.Name)
		}
	}
	return pending, nil
}
