package bulk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/loykin/catalogdb/internal/store/connector"
)

// MemoryRepository is the fallback used while no database is connected.
type MemoryRepository struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{ops: make(map[string]Operation)}
}

func (r *MemoryRepository) Create(_ context.Context, op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[op.ID]; ok {
		return fmt.Errorf("bulk operation %s already exists", op.ID)
	}
	r.ops[op.ID] = op
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[op.ID]; !ok {
		return ErrNotFound
	}
	r.ops[op.ID] = op
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[id]
	if !ok {
		return Operation{}, ErrNotFound
	}
	return op, nil
}

func (r *MemoryRepository) List(context.Context) ([]Operation, error) {
	r.mu.RLock()
	out := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(ops []Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if !ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].CreatedAt.After(ops[j].CreatedAt)
		}
		return ops[i].ID < ops[j].ID
	})
}

const operationColumns = "id, type, status, total, processed, succeeded, failed, error, created_at, updated_at"

// SQLRepository keeps operations in the bulk_operations table.
type SQLRepository struct {
	db      connector.Conn
	dialect connector.Dialect
}

func NewSQLRepository(db connector.Conn, dialect connector.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func scanOperation(row connector.Row) Operation {
	return Operation{
		ID:        row.String("id"),
		Type:      row.String("type"),
		Status:    Status(row.String("status")),
		Total:     int(row.Int64("total")),
		Processed: int(row.Int64("processed")),
		Succeeded: int(row.Int64("succeeded")),
		Failed:    int(row.Int64("failed")),
		Error:     row.String("error"),
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
}

func (r *SQLRepository) Create(ctx context.Context, op Operation) error {
	_, err := r.db.Query(ctx,
		"INSERT INTO bulk_operations ("+operationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		op.ID, op.Type, string(op.Status), op.Total, op.Processed, op.Succeeded, op.Failed, op.Error,
		r.dialect.TimeValue(op.CreatedAt), r.dialect.TimeValue(op.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create bulk operation: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, op Operation) error {
	res, err := r.db.Query(ctx,
		`UPDATE bulk_operations SET status = ?, total = ?, processed = ?, succeeded = ?, failed = ?,
			error = ?, updated_at = ? WHERE id = ?`,
		string(op.Status), op.Total, op.Processed, op.Succeeded, op.Failed, op.Error,
		r.dialect.TimeValue(op.UpdatedAt), op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bulk operation %s: %w", op.ID, err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (Operation, error) {
	res, err := r.db.Query(ctx, "SELECT "+operationColumns+" FROM bulk_operations WHERE id = ?", id)
	if err != nil {
		return Operation{}, fmt.Errorf("failed to load bulk operation %s: %w", id, err)
	}
	row, ok := res.First()
	if !ok {
		return Operation{}, ErrNotFound
	}
	return scanOperation(row), nil
}

func (r *SQLRepository) List(ctx context.Context) ([]Operation, error) {
	res, err := r.db.Query(ctx, "SELECT "+operationColumns+" FROM bulk_operations ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list bulk operations: %w", err)
	}
	out := make([]Operation, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, scanOperation(row))
	}
	return out, nil
}

// Source is what the switching repository needs from the database service.
type Source interface {
	connector.Conn
	IsConnected() bool
	Adapter() connector.Adapter
}

// SwitchRepository uses the database while src is connected and fallback
// otherwise, deciding on every call. Operations created before the database
// came up stay in fallback and keep being served from there.
type SwitchRepository struct {
	src      Source
	fallback Repository
}

func NewSwitchRepository(src Source, fallback Repository) *SwitchRepository {
	return &SwitchRepository{src: src, fallback: fallback}
}

// database returns nil while src is not connected.
func (s *SwitchRepository) database() Repository {
	if s.src == nil || !s.src.IsConnected() {
		return nil
	}
	a := s.src.Adapter()
	if a == nil {
		return nil
	}
	return NewSQLRepository(s.src, a.Dialect())
}

func (s *SwitchRepository) Create(ctx context.Context, op Operation) error {
	if db := s.database(); db != nil {
		return db.Create(ctx, op)
	}
	return s.fallback.Create(ctx, op)
}

func (s *SwitchRepository) Update(ctx context.Context, op Operation) error {
	db := s.database()
	if db == nil {
		return s.fallback.Update(ctx, op)
	}
	err := db.Update(ctx, op)
	if errors.Is(err, ErrNotFound) {
		return s.fallback.Update(ctx, op)
	}
	return err
}

func (s *SwitchRepository) Get(ctx context.Context, id string) (Operation, error) {
	db := s.database()
	if db == nil {
		return s.fallback.Get(ctx, id)
	}
	op, err := db.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.fallback.Get(ctx, id)
	}
	return op, err
}

func (s *SwitchRepository) List(ctx context.Context) ([]Operation, error) {
	db := s.database()
	if db == nil {
		return s.fallback.List(ctx)
	}
	out, err := db.List(ctx)
	if err != nil {
		return nil, err
	}
	early, err := s.fallback.List(ctx)
	if err != nil || len(early) == 0 {
		return out, err
	}
	seen := make(map[string]struct{}, len(out))
	for _, op := range out {
		seen[op.ID] = struct{}{}
	}
	for _, op := range early {
		if _, ok := seen[op.ID]; !ok {
			out = append(out, op)
		}
	}
	sortNewestFirst(out)
	return out, nil
}
