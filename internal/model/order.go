package model

import "time"

// Order statuses. Terminal states are absorbing.
const (
	OrderPending   = "PENDING"
	OrderCompleted = "COMPLETED"
	OrderCanceled  = "CANCELED"
)

// OrderItem is a value object snapshotting the product at order time.
// Price and name are copied from the locked product row so later catalog
// edits cannot change what the customer agreed to pay.
type OrderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Subtotal returns price * quantity for this line.
func (i OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Order is the aggregate root for a purchase. Items are owned inline;
// the companion Payment references the order by ID only.
type Order struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"user_id"`
	Status         string      `json:"status"`
	TotalAmount    int64       `json:"total_amount"`
	Items          []OrderItem `json:"items"`
	CouponCode     string      `json:"coupon_code,omitempty"`
	DiscountAmount int64       `json:"discount_amount"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"-"`
}

// Subtotal returns the sum of all item subtotals before discount.
func (o *Order) Subtotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.Subtotal()
	}
	return sum
}
