package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/product"
)

const getProductsForOrderSQL = `SELECT id, name, sku, price, stock_quantity, is_active
	FROM products WHERE id = ANY($1)`

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetForOrder returns a snapshot of price, stock and availability for the
// given product IDs in a single query. Missing IDs are absent from the map.
func (r *ProductRepository) GetForOrder(ctx context.Context, ids []string) (map[string]product.Snapshot, error) {
	rows, err := r.pool.Query(ctx, getProductsForOrderSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products for order: %w", err)
	}

	snapshots, err := pgx.CollectRows(rows, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("getting products for order: %w", err)
	}

	out := make(map[string]product.Snapshot, len(snapshots))
	for _, s := range snapshots {
		out[s.ID] = s
	}
	return out, nil
}

func scanSnapshot(row pgx.CollectableRow) (product.Snapshot, error) {
	var (
		s     product.Snapshot
		stock int32
	)
	err := row.Scan(&s.ID, &s.Name, &s.SKU, &s.Price, &stock, &s.Active)
	s.Stock = int(stock)
	return s, err
}
