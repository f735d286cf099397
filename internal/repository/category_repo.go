package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Category is an entry of the shared product taxonomy.
type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// CategoryRepository resolves taxonomy categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// FindBySlugs returns the categories whose slug is in slugs, in no particular order.
func (r *CategoryRepository) FindBySlugs(ctx context.Context, slugs []string) ([]Category, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	const q = `SELECT id, name, slug FROM categories WHERE slug = ANY($1)`
	var out []Category
	if err := r.db.SelectContext(ctx, &out, q, pq.Array(slugs)); err != nil {
		return nil, err
	}
	return out, nil
}

// Exists reports whether a category id exists.
func (r *CategoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, id)
	return ok, err
}
