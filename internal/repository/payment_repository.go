package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// PaymentRepository provides data access for payments using pgx.
type PaymentRepository struct {
	pool database.TxQuerier
}

// NewPaymentRepository creates a new PaymentRepository with the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// NewPaymentRepositoryWithQuerier creates a PaymentRepository with a custom
// querier. Primarily used for testing.
func NewPaymentRepositoryWithQuerier(q database.TxQuerier) *PaymentRepository {
	return &PaymentRepository{pool: q}
}

const paymentColumns = `id, order_id, user_id, total_amount, used_point, paid_amount, status,
	card_type, card_no, transaction_key, failure_reason, pg_requested_at, pg_completed_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.TotalAmount, &p.UsedPoint, &p.PaidAmount,
		&p.Status, &p.CardType, &p.CardNo, &p.TransactionKey, &p.FailureReason,
		&p.PgRequestedAt, &p.PgCompletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert persists a new payment within a transaction and fills in the
// generated ID. The unique constraint on order_id enforces one payment
// per order.
func (r *PaymentRepository) Insert(ctx context.Context, tx database.TxQuerier, p *model.Payment) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO payments (order_id, user_id, total_amount, used_point, paid_amount, status,
		   card_type, card_no, transaction_key, failure_reason, pg_requested_at, pg_completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		p.OrderID, p.UserID, p.TotalAmount, p.UsedPoint, p.PaidAmount, p.Status,
		p.CardType, p.CardNo, p.TransactionKey, p.FailureReason, p.PgRequestedAt, p.PgCompletedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return service.Conflict("payment already exists for order")
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByOrderID retrieves the payment belonging to an order.
// Returns service.ErrPaymentNotFound if none exists.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, q database.TxQuerier, orderID int64) (*model.Payment, error) {
	p, err := scanPayment(q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment for order %d: %w", orderID, err)
	}
	return p, nil
}

// GetByOrderIDForUpdate retrieves the order's payment with a row lock so
// concurrent terminal transitions (online path vs callback vs reconciler)
// serialize on the payment row before deciding anything.
func (r *PaymentRepository) GetByOrderIDForUpdate(ctx context.Context, tx database.TxQuerier, orderID int64) (*model.Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID))
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment for update by order %d: %w", orderID, err)
	}
	return p, nil
}

// MarkSuccess transitions a PENDING payment to SUCCESS, stamping the
// completion time and transaction key. Returns true when the row changed;
// false means the payment was not PENDING (caller decides idempotence).
func (r *PaymentRepository) MarkSuccess(ctx context.Context, tx database.TxQuerier, paymentID int64, transactionKey string, completedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, transaction_key = $2, pg_completed_at = $3
		 WHERE id = $4 AND status = $5`,
		model.PaymentSuccess, transactionKey, completedAt, paymentID, model.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("mark payment %d success: %w", paymentID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions a PENDING payment to FAILED with a reason.
// Returns true when the row changed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, tx database.TxQuerier, paymentID int64, reason string, completedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, failure_reason = $2, pg_completed_at = $3
		 WHERE id = $4 AND status = $5`,
		model.PaymentFailed, reason, completedAt, paymentID, model.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("mark payment %d failed: %w", paymentID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingBefore retrieves payments that have been PENDING since before
// the cutoff, oldest first. The reconciliation loop feeds on this.
func (r *PaymentRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND pg_requested_at < $2 AND paid_amount > 0
		 ORDER BY pg_requested_at ASC
		 LIMIT $3`,
		model.PaymentPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	payments := []*model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}
