package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// OrderRepository provides data access for orders using pgx.
// Order items are stored inline as a JSONB column on the order row.
type OrderRepository struct {
	pool database.TxQuerier
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithQuerier creates an OrderRepository with a custom
// querier. Primarily used for testing.
func NewOrderRepositoryWithQuerier(q database.TxQuerier) *OrderRepository {
	return &OrderRepository{pool: q}
}

const orderColumns = `id, user_id, status, total_amount, items, coupon_code, discount_amount, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var items []byte
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &items,
		&o.CouponCode, &o.DiscountAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

// Insert persists a new PENDING order within a transaction and fills in
// the generated ID.
func (r *OrderRepository) Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, total_amount, items, coupon_code, discount_amount)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		o.UserID, o.Status, o.TotalAmount, items, o.CouponCode, o.DiscountAmount,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID.
// Returns service.ErrOrderNotFound if the order doesn't exist.
func (r *OrderRepository) GetByID(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// ListByUser retrieves all orders of a user, newest first.
// On success, returns an empty slice (not nil) when no orders exist.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	orders := []*model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// AdvanceStatus moves an order from PENDING to a terminal status. Terminal
// states are absorbing: the guard on the current status makes repeated or
// conflicting transitions a no-op at the row level. Returns true when the
// row actually changed.
func (r *OrderRepository) AdvanceStatus(ctx context.Context, tx database.TxQuerier, orderID int64, to string) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, orderID, model.OrderPending)
	if err != nil {
		return false, fmt.Errorf("advance order %d to %s: %w", orderID, to, err)
	}
	return tag.RowsAffected() == 1, nil
}
