package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// CouponRepository provides data access for coupon templates and
// per-user coupons using pgx.
type CouponRepository struct {
	pool database.TxQuerier
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithQuerier creates a CouponRepository with a custom
// querier. Primarily used for testing.
func NewCouponRepositoryWithQuerier(q database.TxQuerier) *CouponRepository {
	return &CouponRepository{pool: q}
}

// GetCoupon retrieves a coupon template by code.
// Returns service.ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetCoupon(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error) {
	var c model.Coupon
	err := q.QueryRow(ctx,
		`SELECT code, discount_type, discount_value, created_at FROM coupons WHERE code = $1`, code).
		Scan(&c.Code, &c.DiscountType, &c.DiscountValue, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon %s: %w", code, err)
	}
	return &c, nil
}

// GetUserCoupon retrieves the binding between a user and a coupon code.
// No row lock here: coupon redemption is optimistic by design so the coupon
// race never blocks on the order-path row locks.
// Returns service.ErrCouponNotFound if the user doesn't own the coupon.
func (r *CouponRepository) GetUserCoupon(ctx context.Context, q database.TxQuerier, userID int64, code string) (*model.UserCoupon, error) {
	var uc model.UserCoupon
	err := q.QueryRow(ctx,
		`SELECT id, user_id, coupon_code, used, version, created_at
		 FROM user_coupons WHERE user_id = $1 AND coupon_code = $2`, userID, code).
		Scan(&uc.ID, &uc.UserID, &uc.CouponCode, &uc.Used, &uc.Version, &uc.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get user coupon %s for user %d: %w", code, userID, err)
	}
	return &uc, nil
}

// MarkUsed flips used=false -> true with an optimistic version check.
// Returns service.ErrCouponAlreadyUsed when the compare-and-swap loses,
// which the handler surfaces as 409.
func (r *CouponRepository) MarkUsed(ctx context.Context, tx database.TxQuerier, userCouponID int64, version int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE user_coupons SET used = true, version = version + 1
		 WHERE id = $1 AND version = $2 AND used = false`,
		userCouponID, version)
	if err != nil {
		return fmt.Errorf("mark user coupon %d used: %w", userCouponID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCouponAlreadyUsed
	}
	return nil
}
