package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher relays outbox rows to Kafka
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// EventKey is the partition key of an aggregate, e.g. "sale-42"
func EventKey(aggregateType string, aggregateID int64) string {
	return fmt.Sprintf("%s-%d", aggregateType, aggregateID)
}

// PublishOutboxEvent publishes the stored payload as is
func (ep *EventPublisher) PublishOutboxEvent(ctx context.Context, event models.OutboxEvent) error {
	key := EventKey(event.AggregateType, event.AggregateID)
	return ep.producer.Publish(ctx, key, event.EventType, event.Payload)
}

// EventFunc receives the decoded envelope and the raw payload
type EventFunc func(ctx context.Context, base models.BaseEvent, payload []byte) error

// EventHandler routes incoming shop events by type
type EventHandler struct {
	handlers map[string]EventFunc
	fallback EventFunc
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]EventFunc),
		logger:   util.GetLogger(),
	}
}

// On registers fn for eventType
func (eh *EventHandler) On(eventType string, fn EventFunc) {
	eh.handlers[eventType] = fn
}

// OnAny registers fn for event types without their own handler
func (eh *EventHandler) OnAny(fn EventFunc) {
	eh.fallback = fn
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	if base.EventType == "" {
		base.EventType = headerValue(msg, EventTypeHeader)
	}

	if fn, ok := eh.handlers[base.EventType]; ok {
		return fn(ctx, base, msg.Value)
	}
	if eh.fallback != nil {
		return eh.fallback(ctx, base, msg.Value)
	}

	eh.logger.Debug("Unhandled event type", zap.String("event_type", base.EventType))
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
