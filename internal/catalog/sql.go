package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/loykin/catalogdb/internal/store/connector"
)

const productColumns = "id, store_id, sku, title, description, price, status, seo_title, seo_description, seo_score, created_at, updated_at"

// SQLRepository keeps products in the products table.
type SQLRepository struct {
	db      connector.Conn
	dialect connector.Dialect
}

func NewSQLRepository(db connector.Conn, dialect connector.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanProduct(row connector.Row) Product {
	return Product{
		ID:             row.String("id"),
		StoreID:        row.String("store_id"),
		SKU:            row.String("sku"),
		Title:          row.String("title"),
		Description:    row.String("description"),
		Price:          row.Float64("price"),
		Status:         Status(row.String("status")),
		SEOTitle:       row.String("seo_title"),
		SEODescription: row.String("seo_description"),
		SEOScore:       int(row.Int64("seo_score")),
		CreatedAt:      row.Time("created_at"),
		UpdatedAt:      row.Time("updated_at"),
	}
}

func (r *SQLRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if f.StoreID != "" {
		where = append(where, "store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(sku) LIKE ?)")
		args = append(args, "%"+q+"%", "%"+q+"%")
	}

	var b strings.Builder
	b.WriteString("SELECT " + productColumns + " FROM products")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
		if f.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", f.Offset)
		}
	} else if f.Offset > 0 {
		// MySQL has no OFFSET without LIMIT
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", int64(1)<<53, f.Offset)
	}

	res, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	out := make([]Product, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, scanProduct(row))
	}
	return out, nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (Product, error) {
	res, err := r.db.Query(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if err != nil {
		return Product{}, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	row, ok := res.First()
	if !ok {
		return Product{}, ErrNotFound
	}
	return scanProduct(row), nil
}

func (r *SQLRepository) Create(ctx context.Context, p Product) (Product, error) {
	if err := p.normalize(); err != nil {
		return Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.Query(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, nullable(p.StoreID), p.SKU, p.Title, p.Description, p.Price, string(p.Status),
		p.SEOTitle, p.SEODescription, p.SEOScore,
		r.dialect.TimeValue(p.CreatedAt), r.dialect.TimeValue(p.UpdatedAt),
	)
	if err != nil {
		return Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (r *SQLRepository) Update(ctx context.Context, p Product) (Product, error) {
	if err := p.normalize(); err != nil {
		return Product{}, err
	}
	cur, err := r.Get(ctx, p.ID)
	if err != nil {
		return Product{}, err
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = now()

	res, err := r.db.Query(ctx,
		`UPDATE products SET store_id = ?, sku = ?, title = ?, description = ?, price = ?, status = ?,
			seo_title = ?, seo_description = ?, seo_score = ?, updated_at = ? WHERE id = ?`,
		nullable(p.StoreID), p.SKU, p.Title, p.Description, p.Price, string(p.Status),
		p.SEOTitle, p.SEODescription, p.SEOScore, r.dialect.TimeValue(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return Product{}, fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	if res.RowsAffected == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Query(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Source is what Select needs from the database service.
type Source interface {
	connector.Conn
	IsConnected() bool
	Adapter() connector.Adapter
}

// Select returns the SQL repository while src is connected and fallback
// otherwise.
func Select(src Source, fallback Repository) Repository {
	if src == nil || !src.IsConnected() {
		return fallback
	}
	a := src.Adapter()
	if a == nil {
		return fallback
	}
	return NewSQLRepository(src, a.Dialect())
}
