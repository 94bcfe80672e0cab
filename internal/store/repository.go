package store

import (
	"context"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

// CustomerRepository looks customers up by username and debits wallets
type CustomerRepository interface {
	GetCustomerByUsername(ctx context.Context, username string) (*models.Customer, error)
	// LockCustomerByUsername must only be called inside InTx.
	LockCustomerByUsername(ctx context.Context, username string) (*models.Customer, error)
	// DebitWallet fails with Conflict if the wallet would go negative.
	DebitWallet(ctx context.Context, customerID int64, amount decimal.Decimal) error
}

// ItemRepository looks items up by name and decrements stock
type ItemRepository interface {
	GetItemByName(ctx context.Context, name string) (*models.InventoryItem, error)
	// LockItemByName must only be called inside InTx.
	LockItemByName(ctx context.Context, name string) (*models.InventoryItem, error)
	// DecrementStock fails with Conflict if stock would go negative.
	DecrementStock(ctx context.Context, itemID int64, quantity int) error
	ListAvailableGoods(ctx context.Context) ([]models.Good, error)
}

type SaleRepository interface {
	CreateSale(ctx context.Context, sale *models.Sale) error
	ListPurchaseHistory(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, reviewID int64) (*models.Review, error)
	// LockReview must only be called inside InTx.
	LockReview(ctx context.Context, reviewID int64) (*models.Review, error)
	// UpdateReviewContent writes rating and comment, resets status to pending
	// and refreshes the timestamp.
	UpdateReviewContent(ctx context.Context, review *models.Review) error
	SetReviewStatus(ctx context.Context, reviewID int64, status models.ReviewStatus) error
	DeleteReview(ctx context.Context, reviewID int64) error

	ListApprovedReviewsByItem(ctx context.Context, itemID int64) ([]models.ProductReview, error)
	ListReviewsByCustomer(ctx context.Context, customerID int64) ([]models.CustomerReview, error)
	ListReviewsByStatus(ctx context.Context, status models.ReviewStatus) ([]models.ReviewDetails, error)
	GetReviewDetails(ctx context.Context, reviewID int64) (*models.ReviewDetails, error)
}

type OutboxWriter interface {
	InsertOutboxEvent(ctx context.Context, aggregateType string, aggregateID int64, eventType string, payload []byte) error
}

// Queries is everything that can run either on the pool or inside a transaction
type Queries interface {
	CustomerRepository
	ItemRepository
	SaleRepository
	ReviewRepository
	OutboxWriter
}

// TxManager runs fn in a single transaction. fn's Queries are bound to that
// transaction; the transaction commits only if fn returns nil.
type TxManager interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// Repository is what the services depend on
type Repository interface {
	Queries
	TxManager
}

// OutboxSource is what the outbox relay depends on
type OutboxSource interface {
	PendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}
