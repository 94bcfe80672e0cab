// Command eventtail follows the shop events topic and logs every event, one
// line each. Review moderation events are logged with their outcome.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shop-service/config"
	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "shop-eventtail"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	defer consumer.Close()

	handler := broker.NewEventHandler()
	handler.On(models.EventTypeReviewModerated, func(ctx context.Context, base models.BaseEvent, payload []byte) error {
		var event models.ReviewModeratedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}
		logger.Info("Review moderated",
			zap.String("event_id", base.EventID),
			zap.Int64("review_id", event.ReviewID),
			zap.String("status", string(event.Status)))
		return nil
	})
	handler.On(models.EventTypePurchaseCompleted, func(ctx context.Context, base models.BaseEvent, payload []byte) error {
		var event models.PurchaseCompletedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}
		logger.Info("Purchase completed",
			zap.String("event_id", base.EventID),
			zap.Int64("sale_id", event.SaleID),
			zap.Int("quantity", event.Quantity),
			zap.String("total", event.TotalPrice.StringFixed(2)))
		return nil
	})
	handler.OnAny(func(ctx context.Context, base models.BaseEvent, payload []byte) error {
		logger.Info("Event",
			zap.String("event_id", base.EventID),
			zap.String("event_type", base.EventType),
			zap.ByteString("payload", payload))
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.StartConsuming(ctx, handler.HandleMessage); err != nil {
		logger.Error("Consumer stopped", zap.Error(err))
	}
}
