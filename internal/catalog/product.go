// Package catalog stores products in the database when one is connected and
// in process memory otherwise.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/loykin/catalogdb/internal/util"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidProduct = errors.New("invalid product")
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// ParseStatus accepts a status name in any case; empty means draft.
func ParseStatus(s string) (Status, error) {
	switch st := Status(util.TrimAndLower(s)); st {
	case "":
		return StatusDraft, nil
	case StatusDraft, StatusActive, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidProduct, s)
	}
}

type Product struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"store_id,omitempty"`
	SKU            string    `json:"sku"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Price          float64   `json:"price"`
	Status         Status    `json:"status"`
	SEOTitle       string    `json:"seo_title"`
	SEODescription string    `json:"seo_description"`
	SEOScore       int       `json:"seo_score"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// normalize trims text fields, fills the default status, recomputes the SEO
// score and validates the result.
func (p *Product) normalize() error {
	util.TrimStructFields(p)
	st, err := ParseStatus(string(p.Status))
	if err != nil {
		return err
	}
	p.Status = st
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidProduct)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	p.SEOScore = SEOScore(*p)
	return nil
}

// SEOScore rates how complete the product's search metadata is, 0 to 100.
func SEOScore(p Product) int {
	score := 0
	title := util.FirstNonEmpty(p.SEOTitle, p.Title)
	switch n := utf8.RuneCountInString(title); {
	case n >= 30 && n <= 60:
		score += 30
	case n > 0:
		score += 15
	}
	if p.SEOTitle != "" {
		score += 10
	}
	switch n := utf8.RuneCountInString(p.SEODescription); {
	case n >= 120 && n <= 160:
		score += 25
	case n > 0:
		score += 10
	}
	if utf8.RuneCountInString(p.Description) >= 100 {
		score += 15
	} else if p.Description != "" {
		score += 5
	}
	if p.SKU != "" {
		score += 10
	}
	if p.Price > 0 {
		score += 10
	}
	return score
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	StoreID string
	Status  Status
	Search  string
	Limit   int
	Offset  int
}

func (f Filter) matches(p Product) bool {
	if f.StoreID != "" && p.StoreID != f.StoreID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
			return false
		}
	}
	return true
}

type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
