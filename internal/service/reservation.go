package service

import (
	"context"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// Reservation performs the row-locked stock and balance adjustments.
// Lock-ordering invariant: within one transaction the user row is locked
// first, then product rows in ascending-ID order. Every writer that
// touches both must go through these entry points in that order; this is
// the sole deadlock-avoidance mechanism.
type Reservation struct {
	users    UserStore
	products ProductStore
}

// NewReservation creates a Reservation over the given stores.
func NewReservation(users UserStore, products ProductStore) *Reservation {
	return &Reservation{users: users, products: products}
}

// LockUser acquires the row-exclusive hold on the user. Always the first
// lock taken in a purchase or cancellation transaction.
func (r *Reservation) LockUser(ctx context.Context, tx database.TxQuerier, externalUserID string) (*model.User, error) {
	return r.users.GetForUpdate(ctx, tx, externalUserID)
}

// LockUserByID is the by-internal-ID variant used by cancellation.
func (r *Reservation) LockUserByID(ctx context.Context, tx database.TxQuerier, userID int64) (*model.User, error) {
	return r.users.GetByIDForUpdate(ctx, tx, userID)
}

// LockProducts acquires row-exclusive holds on the requested products.
// The store sorts ascending before locking; callers must have locked the
// user row already.
func (r *Reservation) LockProducts(ctx context.Context, tx database.TxQuerier, ids []int64) (map[int64]*model.Product, error) {
	return r.products.GetForUpdate(ctx, tx, ids)
}

// DecreaseStock reserves quantity units of a locked product.
func (r *Reservation) DecreaseStock(ctx context.Context, tx database.TxQuerier, p *model.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.Stock < quantity {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	return r.products.UpdateStock(ctx, tx, p.ID, p.Stock)
}

// RestoreStock returns quantity units to a locked product during
// cancellation.
func (r *Reservation) RestoreStock(ctx context.Context, tx database.TxQuerier, p *model.Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += quantity
	return r.products.UpdateStock(ctx, tx, p.ID, p.Stock)
}

// DeductPoint spends amount from a locked user's balance.
func (r *Reservation) DeductPoint(ctx context.Context, tx database.TxQuerier, u *model.User, amount int64) error {
	if amount < 0 {
		return BadRequest("point amount must not be negative")
	}
	if amount > u.Point {
		return ErrInsufficientPoint
	}
	u.Point -= amount
	return r.users.UpdatePoint(ctx, tx, u.ID, u.Point)
}

// ReceivePoint refunds amount to a locked user's balance during
// cancellation. The amount must be the used_point recorded on the payment,
// not the order total.
func (r *Reservation) ReceivePoint(ctx context.Context, tx database.TxQuerier, u *model.User, amount int64) error {
	if amount < 0 {
		return BadRequest("point amount must not be negative")
	}
	u.Point += amount
	return r.users.UpdatePoint(ctx, tx, u.ID, u.Point)
}
