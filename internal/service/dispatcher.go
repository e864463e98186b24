package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
)

// EventHandler consumes a published outbox event. Delivery is
// at-least-once, so handlers must be idempotent, keyed by
// (aggregate_type, aggregate_id, version) or an event-specific natural key.
type EventHandler func(ctx context.Context, ev *model.OutboxEvent) error

// Dispatcher polls the outbox and publishes unpublished rows to registered
// in-process handlers, stamping published_at on success. Rows are read in
// insertion order, which preserves per-aggregate order via the partition
// key; cross-aggregate order is not guaranteed.
type Dispatcher struct {
	outbox       OutboxStore
	pollInterval time.Duration
	batchSize    int

	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewDispatcher creates a Dispatcher over the given outbox store.
func NewDispatcher(outbox OutboxStore, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		outbox:       outbox,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		handlers:     make(map[string][]EventHandler),
	}
}

// Register adds a handler for an event type. Call before Run.
func (d *Dispatcher) Register(eventType string, h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	log.Info().Dur("poll_interval", d.pollInterval).Msg("outbox dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if n, err := d.DispatchBatch(ctx); err != nil {
				log.Error().Err(err).Msg("outbox dispatch batch failed")
			} else if n > 0 {
				log.Debug().Int("published", n).Msg("outbox events published")
			}
		}
	}
}

// DispatchBatch publishes one batch of unpublished events and returns how
// many were stamped. A handler failure leaves the row unpublished; it will
// be retried on a later poll, hence at-least-once.
func (d *Dispatcher) DispatchBatch(ctx context.Context) (int, error) {
	events, err := d.outbox.ListUnpublished(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, ev := range events {
		if err := d.publish(ctx, ev); err != nil {
			log.Warn().Err(err).
				Int64("outbox_id", ev.ID).
				Str("event_type", ev.EventType).
				Msg("event publish failed; will retry")
			continue
		}
		if err := d.outbox.MarkPublished(ctx, ev.ID, time.Now()); err != nil {
			// The event was delivered but not stamped; the next poll
			// redelivers and idempotent consumers absorb the duplicate.
			log.Warn().Err(err).Int64("outbox_id", ev.ID).Msg("publish stamp failed")
			continue
		}
		published++
	}
	return published, nil
}

func (d *Dispatcher) publish(ctx context.Context, ev *model.OutboxEvent) error {
	d.mu.RLock()
	handlers := d.handlers[ev.EventType]
	d.mu.RUnlock()

	for _, h := range handlers {
		op := func() error { return h(ctx, ev) }
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
		if err := backoff.Retry(op, bo); err != nil {
			return err
		}
	}
	return nil
}

// PaymentAuditHandler logs each completed payment exactly once, keyed by
// (payment_id, status). It demonstrates the natural-key deduplication
// contract downstream consumers must follow.
type PaymentAuditHandler struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewPaymentAuditHandler creates a PaymentAuditHandler.
func NewPaymentAuditHandler() *PaymentAuditHandler {
	return &PaymentAuditHandler{seen: make(map[string]bool)}
}

// Handle consumes PaymentCompleted/PaymentFailed events.
func (h *PaymentAuditHandler) Handle(ctx context.Context, ev *model.OutboxEvent) error {
	var p model.PaymentEventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return err
	}
	key := ev.EventType + ":" + p.Status + ":" + strconv.FormatInt(p.PaymentID, 10)

	h.mu.Lock()
	dup := h.seen[key]
	h.seen[key] = true
	h.mu.Unlock()
	if dup {
		return nil // duplicate delivery, already audited
	}

	log.Info().
		Int64("payment_id", p.PaymentID).
		Int64("order_id", p.OrderID).
		Str("status", p.Status).
		Int64("paid_amount", p.PaidAmount).
		Str("event_type", ev.EventType).
		Msg("payment audit")
	return nil
}

// OrderAuditHandler logs order lifecycle events once per
// (order_id, status) pair.
type OrderAuditHandler struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewOrderAuditHandler creates an OrderAuditHandler.
func NewOrderAuditHandler() *OrderAuditHandler {
	return &OrderAuditHandler{seen: make(map[string]bool)}
}

// Handle consumes order lifecycle events.
func (h *OrderAuditHandler) Handle(ctx context.Context, ev *model.OutboxEvent) error {
	var p model.OrderEventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return err
	}
	key := ev.EventType + ":" + p.Status + ":" + strconv.FormatInt(p.OrderID, 10)

	h.mu.Lock()
	dup := h.seen[key]
	h.seen[key] = true
	h.mu.Unlock()
	if dup {
		return nil
	}

	log.Info().
		Int64("order_id", p.OrderID).
		Int64("user_id", p.UserID).
		Str("status", p.Status).
		Str("event_type", ev.EventType).
		Str("reason", p.Reason).
		Msg("order audit")
	return nil
}
