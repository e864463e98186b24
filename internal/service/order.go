package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/gateway"
	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// OrderService coordinates the end-to-end purchase use case: reservation,
// coupon redemption, payment creation, the post-commit PG call, and
// cancellation.
type OrderService struct {
	pool       database.Pool
	users      UserStore
	orders     OrderStore
	payments   PaymentStore
	resv       *Reservation
	coupons    *CouponService
	paymentSvc *PaymentService
	bridge     *OutboxBridge
	pg         gateway.Client

	// schedule runs fn after d; swapped out in tests.
	schedule      func(d time.Duration, fn func())
	recoveryDelay time.Duration
	now           func() time.Time
}

// NewOrderService creates an OrderService.
func NewOrderService(
	pool database.Pool,
	users UserStore,
	orders OrderStore,
	payments PaymentStore,
	resv *Reservation,
	coupons *CouponService,
	paymentSvc *PaymentService,
	bridge *OutboxBridge,
	pg gateway.Client,
	recoveryDelay time.Duration,
) *OrderService {
	return &OrderService{
		pool:       pool,
		users:      users,
		orders:     orders,
		payments:   payments,
		resv:       resv,
		coupons:    coupons,
		paymentSvc: paymentSvc,
		bridge:     bridge,
		pg:         pg,
		schedule: func(d time.Duration, fn func()) {
			go func() {
				time.Sleep(d)
				fn()
			}()
		},
		recoveryDelay: recoveryDelay,
		now:           time.Now,
	}
}

// Create runs the canonical purchase use case. The order transaction
// commits before any PG traffic: the post-commit intent holds the PG call
// so external latency never occupies a database connection and no external
// observer ever sees an order that later rolls back.
func (s *OrderService) Create(ctx context.Context, externalUserID string, req *model.CreateOrderRequest) (*model.OrderInfo, error) {
	if strings.TrimSpace(externalUserID) == "" {
		return nil, BadRequest("user id is required")
	}
	if len(req.Items) == 0 {
		return nil, BadRequest("order items must not be empty")
	}
	if req.UsedPoint < 0 {
		return nil, BadRequest("used point must not be negative")
	}

	// Reject duplicate product IDs before any locking.
	productIDs := make([]int64, 0, len(req.Items))
	seen := make(map[int64]bool, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if seen[it.ProductID] {
			return nil, ErrDuplicateProduct
		}
		seen[it.ProductID] = true
		productIDs = append(productIDs, it.ProductID)
	}

	// Card format problems surface before anything is locked or written.
	cardNo := req.CardNo
	if cardNo != "" {
		normalized, err := gateway.NormalizeCardNo(cardNo)
		if err != nil {
			return nil, ErrInvalidCard
		}
		cardNo = normalized
	}

	var (
		order   *model.Order
		payment *model.Payment
		user    *model.User
		intents []func()
	)

	err := database.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Lock order: user first, then products ascending. Every writer
		// touching both must use this order; see Reservation.
		var err error
		user, err = s.resv.LockUser(ctx, tx, externalUserID)
		if err != nil {
			return err
		}
		products, err := s.resv.LockProducts(ctx, tx, productIDs)
		if err != nil {
			return err
		}

		// Item snapshots come from the locked rows, not the request.
		items := make([]model.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			p := products[it.ProductID]
			items = append(items, model.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  it.Quantity,
			})
		}

		order = &model.Order{
			UserID:     user.ID,
			Status:     model.OrderPending,
			Items:      items,
			CouponCode: req.CouponCode(),
		}
		subtotal := order.Subtotal()

		if order.CouponCode != "" {
			discount, err := s.coupons.Redeem(ctx, tx, user.ID, order.CouponCode, subtotal)
			if err != nil {
				return err
			}
			order.DiscountAmount = discount
		}
		order.TotalAmount = subtotal - order.DiscountAmount

		if req.UsedPoint > order.TotalAmount {
			return ErrNegativePaid
		}
		paidAmount := order.TotalAmount - req.UsedPoint
		if paidAmount > 0 && (req.CardType == "" || cardNo == "") {
			return ErrCardRequired
		}

		for _, it := range req.Items {
			if err := s.resv.DecreaseStock(ctx, tx, products[it.ProductID], it.Quantity); err != nil {
				return err
			}
		}
		if err := s.resv.DeductPoint(ctx, tx, user, req.UsedPoint); err != nil {
			return err
		}

		if err := s.orders.Insert(ctx, tx, order); err != nil {
			return err
		}

		now := s.now()
		payment = &model.Payment{
			OrderID:       order.ID,
			UserID:        user.ID,
			TotalAmount:   order.TotalAmount,
			UsedPoint:     req.UsedPoint,
			PaidAmount:    paidAmount,
			Status:        model.PaymentPending,
			PgRequestedAt: now,
		}
		if paidAmount > 0 {
			payment.CardType = req.CardType
			payment.CardNo = cardNo
		} else {
			// Fully covered by point and coupon: born SUCCESS, no PG call,
			// and the order completes in this same transaction.
			payment.Status = model.PaymentSuccess
			payment.PgCompletedAt = &now
		}
		if err := s.payments.Insert(ctx, tx, payment); err != nil {
			return err
		}

		s.bridge.OrderEvent(ctx, tx, model.EventOrderCreated, order, "")
		s.bridge.PaymentEvent(ctx, tx, model.EventPaymentCreated, payment)

		if paidAmount == 0 {
			if _, err := s.orders.AdvanceStatus(ctx, tx, order.ID, model.OrderCompleted); err != nil {
				return err
			}
			order.Status = model.OrderCompleted
			s.bridge.PaymentEvent(ctx, tx, model.EventPaymentCompleted, payment)
			s.bridge.OrderEvent(ctx, tx, model.EventOrderCompleted, order, "")
		} else {
			// The PG call runs only after this transaction commits.
			orderID := order.ID
			amount := paidAmount
			intents = append(intents, func() {
				s.requestPayment(user.ExternalUserID, orderID, req.CardType, cardNo, amount)
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, intent := range intents {
		intent()
	}

	// Re-read so the response reflects whatever the post-commit path did.
	return s.GetOrder(ctx, externalUserID, order.ID)
}

// requestPayment is the post-commit intent: it drives the PG and feeds the
// outcome into the state machine. Nothing here unwinds the committed order
// transaction.
func (s *OrderService) requestPayment(externalUserID string, orderID int64, cardType, cardNo string, amount int64) {
	// Detached from the request context: the order is committed, so the
	// PG outcome must be processed even if the client goes away.
	ctx := context.Background()

	res, err := s.pg.RequestPayment(ctx, gateway.PaymentCommand{
		OrderID:        orderID,
		ExternalUserID: externalUserID,
		CardType:       cardType,
		CardNo:         cardNo,
		Amount:         amount,
	})
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("pg request failed outright; leaving order pending")
		return
	}

	switch {
	case res.Success:
		if err := s.paymentSvc.Complete(ctx, orderID, res.TransactionKey); err != nil {
			log.Error().Err(err).Int64("order_id", orderID).Msg("complete after pg success failed")
		}
	case res.Timeout:
		log.Warn().Int64("order_id", orderID).Msg("pg request timed out; scheduling status recovery")
		s.schedule(s.recoveryDelay, func() {
			s.RecoverAfterTimeout(context.Background(), externalUserID, orderID)
		})
	case gateway.IsBusinessFailure(res.ErrorCode), !res.Retryable:
		// A definitive rejection never settles later and leaves no ledger
		// record, so waiting on the reconciler would park the order forever.
		log.Warn().
			Int64("order_id", orderID).
			Str("error_code", res.ErrorCode).
			Msg("pg rejected payment; canceling order")
		if err := s.Cancel(ctx, orderID, res.ErrorCode+": "+res.Message); err != nil {
			log.Error().Err(err).Int64("order_id", orderID).Msg("cancel after pg rejection failed")
		}
	default:
		// Retryable external failure (breaker open, transport error, 5xx).
		// The order stays PENDING for the reconciler; the system never
		// guesses without ledger evidence.
		log.Warn().
			Int64("order_id", orderID).
			Str("error_code", res.ErrorCode).
			Msg("pg external failure; order stays pending for reconciliation")
	}
}

// RecoverAfterTimeout runs the deferred status lookup after a request
// timeout. Ledger SUCCESS or FAILED drives the usual idempotent
// transitions; no record means the order stays PENDING for the reconciler.
func (s *OrderService) RecoverAfterTimeout(ctx context.Context, externalUserID string, orderID int64) {
	status, err := s.pg.GetStatusByOrder(ctx, externalUserID, gateway.PadOrderID(orderID))
	if err != nil {
		log.Warn().Err(err).Int64("order_id", orderID).Msg("timeout recovery lookup failed; order stays pending")
		return
	}
	switch status {
	case gateway.StatusSuccess:
		if err := s.paymentSvc.Complete(ctx, orderID, ""); err != nil {
			log.Error().Err(err).Int64("order_id", orderID).Msg("timeout recovery complete failed")
		}
	case gateway.StatusFailed:
		if err := s.Cancel(ctx, orderID, "pg reported failure after timeout"); err != nil {
			log.Error().Err(err).Int64("order_id", orderID).Msg("timeout recovery cancel failed")
		}
	default:
		log.Info().Int64("order_id", orderID).Msg("pg still pending after timeout; reconciler will resolve")
	}
}

// Cancel moves a PENDING order to CANCELED, restores stock, fails the
// payment, and refunds exactly the point the payment recorded as spent.
// Already-canceled orders are a no-op; completed orders are rejected.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, reason string) error {
	return database.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		order, err := s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case model.OrderCanceled:
			return nil // idempotent re-apply
		case model.OrderCompleted:
			return fmt.Errorf("order %d already completed: %w", orderID, ErrOrderNotPending)
		}

		// Same canonical lock order as creation: user, then products asc.
		user, err := s.resv.LockUserByID(ctx, tx, order.UserID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(order.Items))
		for _, it := range order.Items {
			ids = append(ids, it.ProductID)
		}
		products, err := s.resv.LockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		changed, err := s.orders.AdvanceStatus(ctx, tx, orderID, model.OrderCanceled)
		if err != nil {
			return err
		}
		if !changed {
			return nil // raced with another canceller
		}
		order.Status = model.OrderCanceled

		for _, it := range order.Items {
			if err := s.resv.RestoreStock(ctx, tx, products[it.ProductID], it.Quantity); err != nil {
				return err
			}
		}

		payment, err := s.paymentSvc.FailInTx(ctx, tx, orderID, reason)
		if err != nil {
			return err
		}
		// Refund the recorded used_point, never the order total: they
		// differ whenever a coupon contributed to the discount.
		if err := s.resv.ReceivePoint(ctx, tx, user, payment.UsedPoint); err != nil {
			return err
		}

		s.bridge.OrderEvent(ctx, tx, model.EventOrderCanceled, order, reason)

		log.Info().
			Int64("order_id", orderID).
			Str("reason", reason).
			Int64("refunded_point", payment.UsedPoint).
			Msg("order canceled")
		return nil
	})
}

// HandleCallback processes a PG-initiated status push. The callback is a
// hint, not authority: the ledger is consulted before any terminal
// transition, and on disagreement the ledger wins.
func (s *OrderService) HandleCallback(ctx context.Context, orderID int64, cb *model.CallbackRequest) error {
	order, err := s.orders.GetByID(ctx, s.pool, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderPending {
		// Terminal orders acknowledge duplicates without side effects.
		return nil
	}
	user, err := s.users.GetByID(ctx, s.pool, order.UserID)
	if err != nil {
		return err
	}

	ledger, err := s.pg.GetStatusByOrder(ctx, user.ExternalUserID, gateway.PadOrderID(orderID))
	if err != nil {
		if errors.Is(err, gateway.ErrNoRecord) {
			log.Warn().Int64("order_id", orderID).Msg("callback for order the ledger doesn't know; ignoring")
			return nil
		}
		return fmt.Errorf("ledger cross-check: %w", err)
	}
	if string(ledger) != cb.Status {
		log.Warn().
			Int64("order_id", orderID).
			Str("callback_status", cb.Status).
			Str("ledger_status", string(ledger)).
			Msg("callback disagrees with ledger; ledger wins")
	}

	switch ledger {
	case gateway.StatusSuccess:
		return s.paymentSvc.Complete(ctx, orderID, cb.TransactionKey)
	case gateway.StatusFailed:
		reason := cb.Reason
		if reason == "" {
			reason = "pg ledger reported failure"
		}
		return s.Cancel(ctx, orderID, reason)
	default:
		return nil
	}
}

// GetOrder fetches one order with its payment, scoped to the caller.
func (s *OrderService) GetOrder(ctx context.Context, externalUserID string, orderID int64) (*model.OrderInfo, error) {
	user, err := s.users.GetByExternalID(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID {
		// Not owned by the caller; indistinguishable from missing.
		return nil, ErrOrderNotFound
	}
	payment, err := s.payments.GetByOrderID(ctx, s.pool, orderID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return &model.OrderInfo{Order: order}, nil
		}
		return nil, err
	}
	return &model.OrderInfo{Order: order, Payment: payment}, nil
}

// GetOrders lists the caller's orders, newest first.
func (s *OrderService) GetOrders(ctx context.Context, externalUserID string) ([]*model.Order, error) {
	user, err := s.users.GetByExternalID(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByUser(ctx, user.ID)
}
