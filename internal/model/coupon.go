package model

import "time"

// Discount types supported by coupon templates.
const (
	DiscountFixed      = "FIXED"
	DiscountPercentage = "PERCENTAGE"
)

// Coupon is a shared, read-mostly coupon template.
type Coupon struct {
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	CreatedAt     time.Time `json:"-"`
}

// Discount computes the discount this coupon grants against a subtotal.
// Fixed coupons never discount more than the subtotal; percentage coupons
// round half up on the won.
func (c *Coupon) Discount(subtotal int64) int64 {
	switch c.DiscountType {
	case DiscountFixed:
		if c.DiscountValue > subtotal {
			return subtotal
		}
		return c.DiscountValue
	case DiscountPercentage:
		return (subtotal*c.DiscountValue + 50) / 100
	default:
		return 0
	}
}

// UserCoupon binds a coupon template to a user. It transitions
// used=false -> true exactly once, enforced by optimistic version CAS.
type UserCoupon struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	CouponCode string    `json:"coupon_code"`
	Used       bool      `json:"used"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"-"`
}
