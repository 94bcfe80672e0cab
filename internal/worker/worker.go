package worker

import (
	"context"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// Publisher sends one outbox event to the broker
type Publisher interface {
	PublishOutboxEvent(ctx context.Context, event models.OutboxEvent) error
}

const (
	defaultInterval  = 500 * time.Millisecond
	defaultBatchSize = 100
)

// OutboxRelay moves committed outbox rows to the broker. Delivery is
// at-least-once: a row is marked sent only after a successful publish.
type OutboxRelay struct {
	source    store.OutboxSource
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	done      chan struct{}
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(source store.OutboxSource, publisher Publisher, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &OutboxRelay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
		done:      make(chan struct{}),
	}
}

// Start polls the outbox every interval until ctx is cancelled
func (r *OutboxRelay) Start(ctx context.Context) error {
	defer close(r.done)

	r.logger.Info("Starting outbox relay",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// Wait blocks until Start has returned
func (r *OutboxRelay) Wait() {
	<-r.done
}

// RelayOnce publishes one batch of pending events and returns how many were
// sent. It stops at the first publish failure so later events of the same
// aggregate never overtake an earlier one.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.source.PendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		if err := r.publisher.PublishOutboxEvent(ctx, event); err != nil {
			util.OutboxPublishFailedTotal.Inc()
			r.logger.Warn("Failed to publish outbox event",
				zap.Int64("outbox_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			return sent, err
		}

		if err := r.source.MarkOutboxSent(ctx, event.ID); err != nil {
			// The event was published; it will be published again next pass.
			r.logger.Error("Failed to mark outbox event sent",
				zap.Int64("outbox_id", event.ID),
				zap.Error(err))
			return sent, err
		}

		util.OutboxPublishedTotal.Inc()
		sent++
	}

	if sent > 0 {
		r.logger.Debug("Relayed outbox events", zap.Int("count", sent))
	}
	return sent, nil
}
