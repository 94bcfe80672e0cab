package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/redisclient"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseService runs the purchase transaction and the sales read side
type PurchaseService struct {
	repo     store.Repository
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(repo store.Repository, cache Cache, cacheTTL time.Duration) *PurchaseService {
	return &PurchaseService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// PurchaseRequest asks to buy Quantity units of ItemName for Username
type PurchaseRequest struct {
	Username string
	ItemName string
	Quantity int
}

// PurchaseResult describes a committed sale
type PurchaseResult struct {
	Message string          `json:"message"`
	Total   decimal.Decimal `json:"total_price"`
	Sale    models.Sale     `json:"sale"`
}

// Purchase validates the customer, item, stock and wallet, then debits the
// wallet, decrements stock, records the sale and queues a PURCHASE_COMPLETED
// event, all in one transaction. The customer row is locked before the item
// row so concurrent purchases serialize on the rows they touch.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (result *PurchaseResult, err error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Purchase",
		attribute.String("customer", req.Username),
		attribute.String("item", req.ItemName),
		attribute.Int("quantity", req.Quantity))
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.PurchaseLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			util.PurchasesFailedTotal.WithLabelValues(reasonLabel(err)).Inc()
		}
	}()

	if req.Quantity <= 0 {
		return nil, apperr.InvalidInput("Quantity must be a positive integer.")
	}

	var (
		sale    models.Sale
		soldOut bool
	)

	err = s.repo.InTx(ctx, func(q store.Queries) error {
		customer, err := q.LockCustomerByUsername(ctx, req.Username)
		if err != nil {
			return err
		}

		item, err := q.LockItemByName(ctx, req.ItemName)
		if err != nil {
			return err
		}

		if item.Stock < req.Quantity {
			return apperr.InsufficientStock(item.Stock, req.Quantity)
		}

		total := item.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		if customer.Wallet.LessThan(total) {
			return apperr.InsufficientFunds(total.Sub(customer.Wallet).StringFixed(2))
		}

		if err := q.DebitWallet(ctx, customer.ID, total); err != nil {
			return err
		}
		if err := q.DecrementStock(ctx, item.ID, req.Quantity); err != nil {
			return err
		}

		sale = models.Sale{
			CustomerID: customer.ID,
			ItemID:     item.ID,
			Quantity:   req.Quantity,
			Price:      item.Price,
			TotalPrice: total,
		}
		if err := q.CreateSale(ctx, &sale); err != nil {
			return err
		}

		event := &models.PurchaseCompletedEvent{
			BaseEvent:  models.NewBaseEvent(models.EventTypePurchaseCompleted),
			SaleID:     sale.ID,
			CustomerID: customer.ID,
			ItemID:     item.ID,
			Quantity:   sale.Quantity,
			UnitPrice:  sale.Price,
			TotalPrice: sale.TotalPrice,
		}
		if err := appendEvent(ctx, q, models.AggregateSale, sale.ID, event.EventType, event); err != nil {
			return err
		}

		soldOut = item.Stock == req.Quantity
		return nil
	})
	if err != nil {
		s.logPurchaseFailure(req, err)
		return nil, err
	}

	util.PurchasesCompletedTotal.Inc()
	util.UnitsSoldTotal.Add(float64(sale.Quantity))
	util.SalesRevenueTotal.Add(sale.TotalPrice.InexactFloat64())

	// The listing only shows items in stock, so it changes when one sells out.
	if soldOut {
		invalidate(ctx, s.cache, redisclient.AvailableGoodsKey())
	}

	s.logger.Info("Purchase completed",
		zap.Int64("sale_id", sale.ID),
		zap.String("customer", req.Username),
		zap.String("item", req.ItemName),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.TotalPrice.StringFixed(2)))

	return &PurchaseResult{
		Message: fmt.Sprintf("Purchase successful. %d x %s bought for $%s.",
			sale.Quantity, req.ItemName, sale.TotalPrice.StringFixed(2)),
		Total: sale.TotalPrice,
		Sale:  sale,
	}, nil
}

func (s *PurchaseService) logPurchaseFailure(req PurchaseRequest, err error) {
	fields := []zap.Field{
		zap.String("customer", req.Username),
		zap.String("item", req.ItemName),
		zap.Int("quantity", req.Quantity),
		zap.Error(err),
	}

	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		s.logger.Error("Purchase failed", fields...)
	case apperr.KindConflict:
		s.logger.Warn("Purchase aborted by concurrent update", fields...)
	default:
		s.logger.Info("Purchase rejected", fields...)
	}
}

// ListAvailableGoods returns name and price of every item in stock
func (s *PurchaseService) ListAvailableGoods(ctx context.Context) (goods []models.Good, err error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.ListAvailableGoods")
	defer func() { util.EndSpan(span, err) }()

	return readThrough(ctx, s.cache, s.cacheTTL, "goods", redisclient.AvailableGoodsKey(),
		func() ([]models.Good, error) {
			return s.repo.ListAvailableGoods(ctx)
		})
}

// GoodDetails returns the full description of one item
func (s *PurchaseService) GoodDetails(ctx context.Context, name string) (details *models.GoodDetails, err error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.GoodDetails", attribute.String("item", name))
	defer func() { util.EndSpan(span, err) }()

	item, err := s.repo.GetItemByName(ctx, name)
	if err != nil {
		return nil, err
	}

	return &models.GoodDetails{
		Name:        item.Name,
		Category:    item.Category,
		Price:       item.Price,
		Description: item.Description,
		Stock:       item.Stock,
	}, nil
}

// PurchaseHistory returns a customer's sales, oldest first. A customer with
// no purchases gets an empty list.
func (s *PurchaseService) PurchaseHistory(ctx context.Context, username string) (history []models.PurchaseRecord, err error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.PurchaseHistory", attribute.String("customer", username))
	defer func() { util.EndSpan(span, err) }()

	customer, err := s.repo.GetCustomerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	return s.repo.ListPurchaseHistory(ctx, customer.ID)
}
