package store

import (
	"context"

	"shop-service/internal/models"
)

// InsertOutboxEvent stores an event in the same transaction as the change it describes
func (q *queries) InsertOutboxEvent(ctx context.Context, aggregateType string, aggregateID int64, eventType string, payload []byte) error {
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4::jsonb)`,
		aggregateType, aggregateID, eventType, string(payload))
	if err != nil {
		return mapDBError("failed to insert outbox event", err)
	}
	return nil
}

// PendingOutbox returns unsent events, oldest first
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	events := []models.OutboxEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapDBError("failed to load outbox", err)
	}
	return events, nil
}

// MarkOutboxSent marks an event as relayed
func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET sent_at = NOW() WHERE id = $1", id)
	if err != nil {
		return mapDBError("failed to mark outbox event sent", err)
	}
	return nil
}
