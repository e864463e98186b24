package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// CouponService applies at most one coupon per order and marks it used
// exactly once, even under parallel attempts. The race is optimistic: no
// row lock is taken, and the loser of the version compare-and-swap gets a
// CONFLICT instead of blocking the winner's order.
type CouponService struct {
	coupons CouponStore
}

// NewCouponService creates a CouponService over the given store.
func NewCouponService(coupons CouponStore) *CouponService {
	return &CouponService{coupons: coupons}
}

// Redeem marks the user's coupon used and returns the discount against the
// subtotal.
// Returns:
//   - ErrCouponNotFound if the user doesn't own the coupon
//   - ErrCouponAlreadyUsed if it was used before, or if the CAS loses
func (s *CouponService) Redeem(ctx context.Context, tx database.TxQuerier, userID int64, code string, subtotal int64) (int64, error) {
	uc, err := s.coupons.GetUserCoupon(ctx, tx, userID, code)
	if err != nil {
		return 0, fmt.Errorf("load user coupon: %w", err)
	}
	if uc.Used {
		return 0, ErrCouponAlreadyUsed
	}

	coupon, err := s.coupons.GetCoupon(ctx, tx, code)
	if err != nil {
		return 0, fmt.Errorf("load coupon template: %w", err)
	}
	discount := coupon.Discount(subtotal)

	if err := s.coupons.MarkUsed(ctx, tx, uc.ID, uc.Version); err != nil {
		return 0, err
	}
	return discount, nil
}
