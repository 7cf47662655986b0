package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors the 'products' table.  The reservation core only
// ever reads products: prices are snapshotted into order lines at
// line-creation time and never re-read afterwards.
type Product struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Status    string          `json:"status"` // draft | published
	CreatedAt time.Time       `json:"created_at"`
}

type ProductRepo struct{ db *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// GetByID fetches a single product.  Returns ErrProductNotFound when
// the id does not exist.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		"SELECT id,name,price,status,created_at FROM products WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.Name, &p.Price, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrProductNotFound
	}
	return p, err
}

// GetByIDs fetches all products for the given ids in one query.  The
// result maps product id to product.  Callers compare len(result)
// against the number of distinct requested ids to detect missing
// products; this keeps batch validation all-or-nothing.
func (r *ProductRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]Product, error) {
	out := make(map[uint64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := "SELECT id,name,price,status,created_at FROM products WHERE id IN (" +
		strings.Join(placeholders, ",") + ")"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPublished returns the published catalog, ordered by name.  Used
// by the public products endpoint.
func (r *ProductRepo) ListPublished(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,name,price,status,created_at FROM products WHERE status='published' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
