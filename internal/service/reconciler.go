package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/gateway"
	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// SweepSummary records the outcome of one reconciliation pass.
type SweepSummary struct {
	SweptAt   time.Time `json:"swept_at"`
	Examined  int       `json:"examined"`
	Completed int       `json:"completed"`
	Canceled  int       `json:"canceled"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
}

// Reconciler periodically drives stale PENDING payments to a terminal
// state using the PG ledger as the source of truth. It reuses the same
// idempotent transitions as the online path, so racing the callback or a
// late PG response is harmless.
type Reconciler struct {
	pool       database.Pool
	payments   PaymentStore
	users      UserStore
	pg         gateway.Client
	paymentSvc *PaymentService
	orderSvc   *OrderService

	interval   time.Duration
	pendingAge time.Duration
	batchSize  int

	snapshots *SnapshotCache
	now       func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	pool database.Pool,
	payments PaymentStore,
	users UserStore,
	pg gateway.Client,
	paymentSvc *PaymentService,
	orderSvc *OrderService,
	interval, pendingAge time.Duration,
	batchSize int,
) *Reconciler {
	return &Reconciler{
		pool:       pool,
		payments:   payments,
		users:      users,
		pg:         pg,
		paymentSvc: paymentSvc,
		orderSvc:   orderSvc,
		interval:   interval,
		pendingAge: pendingAge,
		batchSize:  batchSize,
		snapshots:  NewSnapshotCache(),
		now:        time.Now,
	}
}

// Run sweeps until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Dur("pending_age", r.pendingAge).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep examines one batch of stale PENDING payments and resolves each
// against the ledger. The resulting summary is cached per day as a
// fallback record when the PG is unreachable.
func (r *Reconciler) Sweep(ctx context.Context) SweepSummary {
	summary := SweepSummary{SweptAt: r.now()}

	pending, err := r.payments.ListPendingBefore(ctx, r.now().Add(-r.pendingAge), r.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("reconciler: list pending payments failed")
		summary.Errors++
		return summary
	}
	summary.Examined = len(pending)

	for _, p := range pending {
		switch r.resolve(ctx, p) {
		case model.PaymentSuccess:
			summary.Completed++
		case model.PaymentFailed:
			summary.Canceled++
		case model.PaymentPending:
			summary.Skipped++
		default:
			summary.Errors++
		}
	}

	r.snapshots.Put(summary.SweptAt, summary)
	if summary.Examined > 0 {
		log.Info().
			Int("examined", summary.Examined).
			Int("completed", summary.Completed).
			Int("canceled", summary.Canceled).
			Int("skipped", summary.Skipped).
			Int("errors", summary.Errors).
			Msg("reconciliation sweep finished")
	}
	return summary
}

// resolve cross-checks one payment against the ledger and returns the
// resulting payment status, or "" on error.
func (r *Reconciler) resolve(ctx context.Context, p *model.Payment) string {
	user, err := r.users.GetByID(ctx, r.pool, p.UserID)
	if err != nil {
		log.Error().Err(err).Int64("payment_id", p.ID).Msg("reconciler: load user failed")
		return ""
	}

	status, err := r.pg.GetStatusByOrder(ctx, user.ExternalUserID, gateway.PadOrderID(p.OrderID))
	if err != nil {
		if errors.Is(err, gateway.ErrNoRecord) {
			// The PG never saw this order; leave it PENDING. A future
			// sweep or operator action decides its fate.
			log.Warn().Int64("order_id", p.OrderID).Msg("reconciler: no ledger record; order stays pending")
			return model.PaymentPending
		}
		log.Warn().Err(err).Int64("order_id", p.OrderID).Msg("reconciler: ledger lookup failed")
		return ""
	}

	switch status {
	case gateway.StatusSuccess:
		if err := r.paymentSvc.Complete(ctx, p.OrderID, p.TransactionKey); err != nil {
			log.Error().Err(err).Int64("order_id", p.OrderID).Msg("reconciler: complete failed")
			return ""
		}
		return model.PaymentSuccess
	case gateway.StatusFailed:
		if err := r.orderSvc.Cancel(ctx, p.OrderID, "reconciliation: pg ledger reported failure"); err != nil {
			log.Error().Err(err).Int64("order_id", p.OrderID).Msg("reconciler: cancel failed")
			return ""
		}
		return model.PaymentFailed
	default:
		return model.PaymentPending
	}
}

// LastSummary returns the most recent sweep summary, if one exists.
func (r *Reconciler) LastSummary() (SweepSummary, bool) {
	v, ok := r.snapshots.Latest()
	if !ok {
		return SweepSummary{}, false
	}
	s, ok := v.(SweepSummary)
	return s, ok
}
