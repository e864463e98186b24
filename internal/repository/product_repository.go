package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// ProductRepository provides data access for products using pgx.
type ProductRepository struct {
	pool database.TxQuerier
}

// NewProductRepository creates a new ProductRepository with the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// NewProductRepositoryWithQuerier creates a ProductRepository with a custom
// querier. Primarily used for testing.
func NewProductRepositoryWithQuerier(q database.TxQuerier) *ProductRepository {
	return &ProductRepository{pool: q}
}

// GetForUpdate retrieves the requested products with row locks, acquiring
// them in ascending-ID order. The sort is the deadlock-prevention invariant
// and applies even to single-product batches so callers stay uniform.
// Returns service.ErrProductNotFound if any requested ID is missing.
func (r *ProductRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, ids []int64) (map[int64]*model.Product, error) {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// One query per row keeps the acquisition order deterministic; a single
	// IN (...) FOR UPDATE leaves the lock order to the planner.
	products := make(map[int64]*model.Product, len(sorted))
	for _, id := range sorted {
		row := tx.QueryRow(ctx,
			`SELECT id, name, price, stock, brand_id, created_at FROM products WHERE id = $1 FOR UPDATE`, id)
		var p model.Product
		if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.BrandID, &p.CreatedAt); err != nil {
			if isNoRows(err) {
				return nil, service.ErrProductNotFound
			}
			return nil, fmt.Errorf("get product for update %d: %w", id, err)
		}
		products[p.ID] = &p
	}
	return products, nil
}

// UpdateStock persists a new stock count. Must be called within a
// transaction after locking the row.
func (r *ProductRepository) UpdateStock(ctx context.Context, tx database.TxQuerier, productID int64, stock int) error {
	_, err := tx.Exec(ctx, `UPDATE products SET stock = $1 WHERE id = $2`, stock, productID)
	if err != nil {
		return fmt.Errorf("update stock for product %d: %w", productID, err)
	}
	return nil
}
