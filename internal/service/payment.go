package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// PaymentService owns the PENDING -> SUCCESS/FAILED state machine.
// Terminal transitions are idempotent: re-applying the same terminal state
// is a no-op that emits no new event, while crossing terminals
// (SUCCESS -> FAILED or the reverse) is rejected and indicates a
// reconciliation bug.
type PaymentService struct {
	pool     database.TxBeginner
	payments PaymentStore
	orders   OrderStore
	bridge   *OutboxBridge
	now      func() time.Time
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(pool database.TxBeginner, payments PaymentStore, orders OrderStore, bridge *OutboxBridge) *PaymentService {
	return &PaymentService{
		pool:     pool,
		payments: payments,
		orders:   orders,
		bridge:   bridge,
		now:      time.Now,
	}
}

// Complete moves the order's payment to SUCCESS and the order to COMPLETED
// in one short transaction. Safe to call from the online path, the
// callback path, and the reconciler; whichever arrives first wins and the
// rest are no-ops.
func (s *PaymentService) Complete(ctx context.Context, orderID int64, transactionKey string) error {
	return database.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Row lock serializes terminal writers; whoever holds it sees the
		// other's committed status and no-ops.
		p, err := s.payments.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch p.Status {
		case model.PaymentSuccess:
			return nil // idempotent re-apply
		case model.PaymentFailed:
			return fmt.Errorf("payment %d already FAILED: %w", p.ID, ErrInvalidTransition)
		}

		completedAt := s.now()
		changed, err := s.payments.MarkSuccess(ctx, tx, p.ID, transactionKey, completedAt)
		if err != nil {
			return err
		}
		if !changed {
			// Row already left PENDING; the guarded UPDATE left it alone.
			return nil
		}
		p.Status = model.PaymentSuccess
		p.TransactionKey = transactionKey
		p.PgCompletedAt = &completedAt

		if _, err := s.orders.AdvanceStatus(ctx, tx, orderID, model.OrderCompleted); err != nil {
			return err
		}
		order, err := s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		s.bridge.PaymentEvent(ctx, tx, model.EventPaymentCompleted, p)
		s.bridge.OrderEvent(ctx, tx, model.EventOrderCompleted, order, "")

		log.Info().
			Int64("order_id", orderID).
			Int64("payment_id", p.ID).
			Str("transaction_key", transactionKey).
			Msg("payment completed")
		return nil
	})
}

// FailInTx moves the order's payment to FAILED inside the caller's
// transaction and returns the payment so the canceller can refund the
// recorded used point. Already-FAILED payments are a no-op.
func (s *PaymentService) FailInTx(ctx context.Context, tx database.TxQuerier, orderID int64, reason string) (*model.Payment, error) {
	p, err := s.payments.GetByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case model.PaymentFailed:
		return p, nil // idempotent re-apply
	case model.PaymentSuccess:
		return nil, fmt.Errorf("payment %d already SUCCESS: %w", p.ID, ErrInvalidTransition)
	}

	completedAt := s.now()
	changed, err := s.payments.MarkFailed(ctx, tx, p.ID, reason, completedAt)
	if err != nil {
		return nil, err
	}
	if changed {
		p.Status = model.PaymentFailed
		p.FailureReason = reason
		p.PgCompletedAt = &completedAt
		s.bridge.PaymentEvent(ctx, tx, model.EventPaymentFailed, p)
	}
	return p, nil
}
