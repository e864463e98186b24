package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// OutboxBridge moves in-process domain events into the transactional
// outbox, inside the producing transaction. A bridge failure is logged and
// swallowed: a transient outbox write problem must never lose the primary
// state change. Reconciliation can regenerate anything a lost event would
// have driven.
type OutboxBridge struct {
	outbox OutboxStore
}

// NewOutboxBridge creates a bridge over the given outbox store.
func NewOutboxBridge(outbox OutboxStore) *OutboxBridge {
	return &OutboxBridge{outbox: outbox}
}

// OrderEvent appends an order lifecycle event to the outbox in tx.
func (b *OutboxBridge) OrderEvent(ctx context.Context, tx database.TxQuerier, eventType string, o *model.Order, reason string) {
	b.append(ctx, tx, model.AggregateOrder, o.ID, eventType, model.OrderEventPayload{
		EventID:     uuid.NewString(),
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Reason:      reason,
	})
}

// PaymentEvent appends a payment lifecycle event to the outbox in tx.
func (b *OutboxBridge) PaymentEvent(ctx context.Context, tx database.TxQuerier, eventType string, p *model.Payment) {
	b.append(ctx, tx, model.AggregatePayment, p.ID, eventType, model.PaymentEventPayload{
		EventID:        uuid.NewString(),
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		Status:         p.Status,
		PaidAmount:     p.PaidAmount,
		UsedPoint:      p.UsedPoint,
		TransactionKey: p.TransactionKey,
		FailureReason:  p.FailureReason,
	})
}

func (b *OutboxBridge) append(ctx context.Context, tx database.TxQuerier, aggregateType string, aggregateID int64, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("outbox bridge: encode payload failed")
		return
	}
	ev := &model.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		PartitionKey:  strconv.FormatInt(aggregateID, 10),
	}
	if err := b.outbox.Append(ctx, tx, ev); err != nil {
		log.Error().Err(err).
			Str("aggregate_type", aggregateType).
			Int64("aggregate_id", aggregateID).
			Str("event_type", eventType).
			Msg("outbox bridge: append failed, event dropped")
	}
}
