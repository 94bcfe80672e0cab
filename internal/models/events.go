package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePurchaseCompleted = "PURCHASE_COMPLETED"
	EventTypeReviewSubmitted   = "REVIEW_SUBMITTED"
	EventTypeReviewUpdated     = "REVIEW_UPDATED"
	EventTypeReviewModerated   = "REVIEW_MODERATED"
	EventTypeReviewDeleted     = "REVIEW_DELETED"
)

// Aggregate types used as outbox keys
const (
	AggregateSale   = "sale"
	AggregateReview = "review"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PurchaseCompletedEvent published when a sale is recorded
type PurchaseCompletedEvent struct {
	BaseEvent
	SaleID     int64           `json:"sale_id"`
	CustomerID int64           `json:"customer_id"`
	ItemID     int64           `json:"item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ReviewSubmittedEvent published when a customer submits a review
type ReviewSubmittedEvent struct {
	BaseEvent
	ReviewID   int64 `json:"review_id"`
	CustomerID int64 `json:"customer_id"`
	ItemID     int64 `json:"item_id"`
	Rating     int   `json:"rating"`
}

// ReviewUpdatedEvent published when the author edits a review
type ReviewUpdatedEvent struct {
	BaseEvent
	ReviewID int64 `json:"review_id"`
	ItemID   int64 `json:"item_id"`
	Rating   int   `json:"rating"`
}

// ReviewModeratedEvent published for approve and flag actions
type ReviewModeratedEvent struct {
	BaseEvent
	ReviewID int64            `json:"review_id"`
	ItemID   int64            `json:"item_id"`
	Action   ModerationAction `json:"action"`
	Status   ReviewStatus     `json:"status"`
}

// ReviewDeletedEvent published when a review is removed by its author or a moderator
type ReviewDeletedEvent struct {
	BaseEvent
	ReviewID  int64  `json:"review_id"`
	ItemID    int64  `json:"item_id"`
	DeletedBy string `json:"deleted_by"`
}

const (
	DeletedByAuthor    = "author"
	DeletedByModerator = "moderator"
)
