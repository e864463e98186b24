package model

import "time"

// Payment statuses.
const (
	PaymentPending = "PENDING"
	PaymentSuccess = "SUCCESS"
	PaymentFailed  = "FAILED"
)

// Payment records how an order is settled. Exactly one payment exists per
// order. PaidAmount is what goes to the PG after point usage; a zero
// PaidAmount payment is born SUCCESS and never reaches the PG.
type Payment struct {
	ID             int64      `json:"id"`
	OrderID        int64      `json:"order_id"`
	UserID         int64      `json:"user_id"`
	TotalAmount    int64      `json:"total_amount"`
	UsedPoint      int64      `json:"used_point"`
	PaidAmount     int64      `json:"paid_amount"`
	Status         string     `json:"status"`
	CardType       string     `json:"card_type,omitempty"`
	CardNo         string     `json:"card_no,omitempty"`
	TransactionKey string     `json:"transaction_key,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	PgRequestedAt  time.Time  `json:"pg_requested_at"`
	PgCompletedAt  *time.Time `json:"pg_completed_at,omitempty"`
}

// Terminal reports whether the payment has reached a terminal status.
func (p *Payment) Terminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}
