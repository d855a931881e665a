package store

import (
	"context"
	"fmt"
)

func (t *pgTx) SaveOutboxEvent(ctx context.Context, ev OutboxEventRow) error {
	// payload goes over the wire as text, lib/pq would hex-encode []byte
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.AggregateType, ev.AggregateID, ev.EventType, ev.Topic, string(ev.Payload),
	)
	if err != nil {
		return fmt.Errorf("save outbox event %s: %w", ev.EventType, err)
	}
	return nil
}

// PendingEvents skips rows locked by another relay instance.
func (t *pgTx) PendingEvents(ctx context.Context, maxAttempts, limit int) ([]OutboxEventRow, error) {
	out := []OutboxEventRow{}
	err := t.tx.SelectContext(ctx, &out, `
		SELECT id, aggregate_type, aggregate_id, event_type, topic, payload, created_at, attempts
		FROM outbox
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox events: %w", err)
	}
	return out, nil
}

func (t *pgTx) MarkEventPublished(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = NOW(), last_error = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d published: %w", id, err)
	}
	return nil
}

func (t *pgTx) MarkEventFailed(ctx context.Context, id int64, reason string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("mark outbox event %d failed: %w", id, err)
	}
	return nil
}
