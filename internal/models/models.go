package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is owned by the customer service; only the wallet is mutated here
type Customer struct {
	ID        int64           `db:"id" json:"id"`
	Username  string          `db:"username" json:"username"`
	FullName  string          `db:"full_name" json:"full_name"`
	Wallet    decimal.Decimal `db:"wallet" json:"wallet"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// InventoryItem is owned by the inventory service; only stock is mutated here
type InventoryItem struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Description string          `db:"description" json:"description"`
	Stock       int             `db:"stock" json:"stock"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Sale is an immutable record of one completed purchase
type Sale struct {
	ID         int64           `db:"id" json:"id"`
	CustomerID int64           `db:"customer_id" json:"customer_id"`
	ItemID     int64           `db:"item_id" json:"item_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt  time.Time       `db:"created_at" json:"timestamp"`
}

// Review is a customer's rating of an item
type Review struct {
	ID         int64        `db:"id" json:"id"`
	CustomerID int64        `db:"customer_id" json:"customer_id"`
	ItemID     int64        `db:"item_id" json:"item_id"`
	Rating     int          `db:"rating" json:"rating"`
	Comment    string       `db:"comment" json:"comment"`
	Status     ReviewStatus `db:"status" json:"status"`
	UpdatedAt  time.Time    `db:"updated_at" json:"timestamp"`
}

// ReviewStatus is the stored moderation state. Deletion removes the row.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusFlagged  ReviewStatus = "flagged"
)

// ModerationAction is an administrative transition applied to a review
type ModerationAction string

const (
	ModerationApprove ModerationAction = "approve"
	ModerationFlag    ModerationAction = "flag"
	ModerationDelete  ModerationAction = "delete"
)

// Valid reports whether a is one of approve, flag, delete.
func (a ModerationAction) Valid() bool {
	switch a {
	case ModerationApprove, ModerationFlag, ModerationDelete:
		return true
	}
	return false
}

// TargetStatus is the status a review lands in after the action.
// Delete has no target status.
func (a ModerationAction) TargetStatus() (ReviewStatus, bool) {
	switch a {
	case ModerationApprove:
		return ReviewStatusApproved, true
	case ModerationFlag:
		return ReviewStatusFlagged, true
	}
	return "", false
}

const (
	MinRating = 1
	MaxRating = 5
)

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// Good is the public listing view of an item in stock
type Good struct {
	Name  string          `db:"name" json:"name"`
	Price decimal.Decimal `db:"price" json:"price"`
}

// GoodDetails is the full view of a single item
type GoodDetails struct {
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Description string          `db:"description" json:"description"`
	Stock       int             `db:"stock" json:"stock"`
}

// PurchaseRecord is one row of a customer's purchase history
type PurchaseRecord struct {
	SaleID     int64           `db:"sale_id" json:"sale_id"`
	ItemName   string          `db:"item_name" json:"item_name"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	Timestamp  time.Time       `db:"created_at" json:"timestamp"`
}

// ProductReview is an approved review as shown on a product page
type ProductReview struct {
	ReviewID  int64     `db:"review_id" json:"review_id"`
	Username  string    `db:"username" json:"username"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	Timestamp time.Time `db:"updated_at" json:"timestamp"`
}

// CustomerReview is a review in its author's listing, with its status
type CustomerReview struct {
	ReviewID  int64        `db:"review_id" json:"review_id"`
	ItemName  string       `db:"item_name" json:"item_name"`
	Rating    int          `db:"rating" json:"rating"`
	Comment   string       `db:"comment" json:"comment"`
	Status    ReviewStatus `db:"status" json:"status"`
	Timestamp time.Time    `db:"updated_at" json:"timestamp"`
}

// ReviewDetails is the full view of a review regardless of status
type ReviewDetails struct {
	ReviewID  int64        `db:"review_id" json:"review_id"`
	Username  string       `db:"username" json:"username"`
	ItemName  string       `db:"item_name" json:"item_name"`
	Rating    int          `db:"rating" json:"rating"`
	Comment   string       `db:"comment" json:"comment"`
	Status    ReviewStatus `db:"status" json:"status"`
	Timestamp time.Time    `db:"updated_at" json:"timestamp"`
}

// OutboxEvent is a domain event waiting to be relayed to the broker
type OutboxEvent struct {
	ID            int64     `db:"id" json:"id"`
	AggregateType string    `db:"aggregate_type" json:"aggregate_type"`
	AggregateID   int64     `db:"aggregate_id" json:"aggregate_id"`
	EventType     string    `db:"event_type" json:"event_type"`
	Payload       []byte    `db:"payload" json:"payload"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
