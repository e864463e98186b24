package model

import "time"

// Aggregate types recorded on outbox rows.
const (
	AggregateOrder   = "ORDER"
	AggregatePayment = "PAYMENT"
)

// Event types carried through the outbox.
const (
	EventOrderCreated     = "OrderCreated"
	EventOrderCompleted   = "OrderCompleted"
	EventOrderCanceled    = "OrderCanceled"
	EventPaymentCreated   = "PaymentCreated"
	EventPaymentCompleted = "PaymentCompleted"
	EventPaymentFailed    = "PaymentFailed"
)

// OutboxEvent is a domain event persisted in the same transaction as the
// state change that produced it. Version is a per-aggregate monotonic
// sequence computed as max(existing)+1 inside that transaction;
// (AggregateType, AggregateID, Version) is unique.
type OutboxEvent struct {
	ID            int64      `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   int64      `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Payload       []byte     `json:"payload"`
	PartitionKey  string     `json:"partition_key"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// OrderEventPayload is the payload for order lifecycle events.
type OrderEventPayload struct {
	EventID     string `json:"event_id"`
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
	Reason      string `json:"reason,omitempty"`
}

// PaymentEventPayload is the payload for payment lifecycle events.
// Consumers deduplicate on (PaymentID, Status).
type PaymentEventPayload struct {
	EventID        string `json:"event_id"`
	PaymentID      int64  `json:"payment_id"`
	OrderID        int64  `json:"order_id"`
	Status         string `json:"status"`
	PaidAmount     int64  `json:"paid_amount"`
	UsedPoint      int64  `json:"used_point"`
	TransactionKey string `json:"transaction_key,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
}
