package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shop-service/internal/apperr"
	"shop-service/internal/store"
)

// appendEvent writes event to the outbox through the caller's transaction
func appendEvent(ctx context.Context, q store.OutboxWriter, aggregateType string, aggregateID int64, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperr.Internal("failed to marshal event", err)
	}
	if err := q.InsertOutboxEvent(ctx, aggregateType, aggregateID, eventType, payload); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

// reasonLabel turns an error kind into a metric label, e.g. "insufficient_stock"
func reasonLabel(err error) string {
	kind := string(apperr.KindOf(err))

	var b strings.Builder
	for i, r := range kind {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
