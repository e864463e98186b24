package model

// OrderItemRequest is one line of a create-order request.
type OrderItemRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gte=1"`
	Quantity   int    `json:"quantity" validate:"required,gte=1"`
	CouponCode string `json:"coupon_code,omitempty" validate:"omitempty,max=255"`
}

// CreateOrderRequest is the DTO for POST /api/v1/orders.
type CreateOrderRequest struct {
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	UsedPoint int64              `json:"used_point" validate:"gte=0"`
	CardType  string             `json:"card_type,omitempty" validate:"omitempty,max=32"`
	CardNo    string             `json:"card_no,omitempty" validate:"omitempty,max=32,cardno"`
}

// CouponCode returns the first coupon code present on any item, if any.
// At most one coupon applies per order.
func (r *CreateOrderRequest) CouponCode() string {
	for _, it := range r.Items {
		if it.CouponCode != "" {
			return it.CouponCode
		}
	}
	return ""
}

// CallbackRequest is the DTO for the PG-initiated status push.
// OrderID arrives zero-padded per the PG wire format.
type CallbackRequest struct {
	TransactionKey string `json:"transaction_key" validate:"required,notblank"`
	OrderID        string `json:"order_id" validate:"required,notblank"`
	Status         string `json:"status" validate:"required,oneof=PENDING SUCCESS FAILED"`
	Reason         string `json:"reason,omitempty"`
}

// OrderInfo is the API representation of an order with its payment.
type OrderInfo struct {
	Order   *Order   `json:"order"`
	Payment *Payment `json:"payment,omitempty"`
}
