package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// OutboxRepository provides data access for the transactional outbox.
type OutboxRepository struct {
	pool database.TxQuerier
}

// NewOutboxRepository creates a new OutboxRepository with the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// NewOutboxRepositoryWithQuerier creates an OutboxRepository with a custom
// querier. Primarily used for testing.
func NewOutboxRepositoryWithQuerier(q database.TxQuerier) *OutboxRepository {
	return &OutboxRepository{pool: q}
}

// Append inserts an outbox row in the caller's transaction. The version is
// computed as max(existing)+1 for the aggregate inside the same transaction,
// so the unique (aggregate_type, aggregate_id, version) constraint makes the
// per-aggregate sequence contiguous and strictly increasing.
func (r *OutboxRepository) Append(ctx context.Context, tx database.TxQuerier, ev *model.OutboxEvent) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, partition_key, version)
		 SELECT $1, $2, $3, $4, $5, COALESCE(MAX(version), 0) + 1
		 FROM outbox_events WHERE aggregate_type = $1 AND aggregate_id = $2
		 RETURNING id, version, created_at`,
		ev.AggregateType, ev.AggregateID, ev.EventType, ev.Payload, ev.PartitionKey,
	).Scan(&ev.ID, &ev.Version, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append outbox event %s/%d: %w", ev.AggregateType, ev.AggregateID, err)
	}
	return nil
}

// ListUnpublished retrieves unpublished events in insertion order, which is
// publication order per aggregate via the partition key.
func (r *OutboxRepository) ListUnpublished(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, partition_key, version, created_at, published_at
		 FROM outbox_events WHERE published_at IS NULL
		 ORDER BY id ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished outbox events: %w", err)
	}
	defer rows.Close()

	events := []*model.OutboxEvent{}
	for rows.Next() {
		var ev model.OutboxEvent
		err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType,
			&ev.Payload, &ev.PartitionKey, &ev.Version, &ev.CreatedAt, &ev.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return events, nil
}

// MarkPublished stamps published_at after a successful publish. Publication
// is at-least-once: a crash between publish and stamp replays the event.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET published_at = $1 WHERE id = $2 AND published_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d published: %w", id, err)
	}
	return nil
}
