package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/shopspring/decimal"
)

// memState is the in-memory equivalent of the database tables
type memState struct {
	customers map[int64]models.Customer
	items     map[int64]models.InventoryItem
	sales     []models.Sale
	reviews   map[int64]models.Review
	outbox    []models.OutboxEvent
	nextID    int64
}

func (s *memState) clone() *memState {
	c := &memState{
		customers: make(map[int64]models.Customer, len(s.customers)),
		items:     make(map[int64]models.InventoryItem, len(s.items)),
		sales:     append([]models.Sale(nil), s.sales...),
		reviews:   make(map[int64]models.Review, len(s.reviews)),
		outbox:    append([]models.OutboxEvent(nil), s.outbox...),
		nextID:    s.nextID,
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	return c
}

// memStore implements store.Repository. Transactions run one at a time on a
// copy of the state that is swapped in only when fn succeeds.
type memStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState

	// failCreateSale makes CreateSale fail, to check rollback
	failCreateSale bool
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		customers: map[int64]models.Customer{},
		items:     map[int64]models.InventoryItem{},
		reviews:   map[int64]models.Review{},
	}}
}

func (m *memStore) addCustomer(username, wallet string) models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextID++
	c := models.Customer{
		ID:        m.state.nextID,
		Username:  username,
		FullName:  username,
		Wallet:    decimal.RequireFromString(wallet),
		CreatedAt: time.Now(),
	}
	m.state.customers[c.ID] = c
	return c
}

func (m *memStore) addItem(name, price string, stock int) models.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextID++
	item := models.InventoryItem{
		ID:       m.state.nextID,
		Name:     name,
		Category: "General",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	m.state.items[item.ID] = item
	return item
}

func (m *memStore) customer(id int64) models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.customers[id]
}

func (m *memStore) item(id int64) models.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.items[id]
}

func (m *memStore) review(id int64) (models.Review, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.reviews[id]
	return r, ok
}

func (m *memStore) salesCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.sales)
}

func (m *memStore) outboxTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.state.outbox))
	for _, e := range m.state.outbox {
		types = append(types, e.EventType)
	}
	return types
}

func (m *memStore) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	working := m.state.clone()
	m.mu.Unlock()

	if err := fn(&memQueries{state: working, failCreateSale: m.failCreateSale}); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = working
	m.mu.Unlock()
	return nil
}

// Reads outside a transaction see the committed state.
func (m *memStore) committed() *memQueries {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memQueries{state: m.state.clone()}
}

func (m *memStore) GetCustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	return m.committed().GetCustomerByUsername(ctx, username)
}

func (m *memStore) LockCustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	return nil, errors.New("lock outside transaction")
}

func (m *memStore) DebitWallet(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	return errors.New("write outside transaction")
}

func (m *memStore) GetItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return m.committed().GetItemByName(ctx, name)
}

func (m *memStore) LockItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return nil, errors.New("lock outside transaction")
}

func (m *memStore) DecrementStock(ctx context.Context, itemID int64, quantity int) error {
	return errors.New("write outside transaction")
}

func (m *memStore) ListAvailableGoods(ctx context.Context) ([]models.Good, error) {
	return m.committed().ListAvailableGoods(ctx)
}

func (m *memStore) CreateSale(ctx context.Context, sale *models.Sale) error {
	return errors.New("write outside transaction")
}

func (m *memStore) ListPurchaseHistory(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error) {
	return m.committed().ListPurchaseHistory(ctx, customerID)
}

func (m *memStore) CreateReview(ctx context.Context, review *models.Review) error {
	return errors.New("write outside transaction")
}

func (m *memStore) GetReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	return m.committed().GetReview(ctx, reviewID)
}

func (m *memStore) LockReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	return nil, errors.New("lock outside transaction")
}

func (m *memStore) UpdateReviewContent(ctx context.Context, review *models.Review) error {
	return errors.New("write outside transaction")
}

func (m *memStore) SetReviewStatus(ctx context.Context, reviewID int64, status models.ReviewStatus) error {
	return errors.New("write outside transaction")
}

func (m *memStore) DeleteReview(ctx context.Context, reviewID int64) error {
	return errors.New("write outside transaction")
}

func (m *memStore) ListApprovedReviewsByItem(ctx context.Context, itemID int64) ([]models.ProductReview, error) {
	return m.committed().ListApprovedReviewsByItem(ctx, itemID)
}

func (m *memStore) ListReviewsByCustomer(ctx context.Context, customerID int64) ([]models.CustomerReview, error) {
	return m.committed().ListReviewsByCustomer(ctx, customerID)
}

func (m *memStore) ListReviewsByStatus(ctx context.Context, status models.ReviewStatus) ([]models.ReviewDetails, error) {
	return m.committed().ListReviewsByStatus(ctx, status)
}

func (m *memStore) GetReviewDetails(ctx context.Context, reviewID int64) (*models.ReviewDetails, error) {
	return m.committed().GetReviewDetails(ctx, reviewID)
}

func (m *memStore) InsertOutboxEvent(ctx context.Context, aggregateType string, aggregateID int64, eventType string, payload []byte) error {
	return errors.New("write outside transaction")
}

// memQueries operates on one memState, either a transaction's working copy
// or a snapshot of the committed state.
type memQueries struct {
	state          *memState
	failCreateSale bool
}

func (q *memQueries) GetCustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	for _, c := range q.state.customers {
		if c.Username == username {
			c := c
			return &c, nil
		}
	}
	return nil, apperr.NotFound("customer", username)
}

func (q *memQueries) LockCustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	return q.GetCustomerByUsername(ctx, username)
}

func (q *memQueries) DebitWallet(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	c, ok := q.state.customers[customerID]
	if !ok || c.Wallet.LessThan(amount) {
		return apperr.Conflict("wallet changed concurrently", nil)
	}
	c.Wallet = c.Wallet.Sub(amount)
	q.state.customers[customerID] = c
	return nil
}

func (q *memQueries) GetItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	for _, item := range q.state.items {
		if item.Name == name {
			item := item
			return &item, nil
		}
	}
	return nil, apperr.NotFound("item", name)
}

func (q *memQueries) LockItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return q.GetItemByName(ctx, name)
}

func (q *memQueries) DecrementStock(ctx context.Context, itemID int64, quantity int) error {
	item, ok := q.state.items[itemID]
	if !ok || item.Stock < quantity {
		return apperr.Conflict("stock changed concurrently", nil)
	}
	item.Stock -= quantity
	q.state.items[itemID] = item
	return nil
}

func (q *memQueries) ListAvailableGoods(ctx context.Context) ([]models.Good, error) {
	goods := []models.Good{}
	for _, item := range q.sortedItems() {
		if item.Stock > 0 {
			goods = append(goods, models.Good{Name: item.Name, Price: item.Price})
		}
	}
	return goods, nil
}

func (q *memQueries) sortedItems() []models.InventoryItem {
	items := make([]models.InventoryItem, 0, len(q.state.items))
	for _, item := range q.state.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (q *memQueries) CreateSale(ctx context.Context, sale *models.Sale) error {
	if q.failCreateSale {
		return apperr.Internal("failed to create sale", errors.New("disk full"))
	}
	q.state.nextID++
	sale.ID = q.state.nextID
	sale.CreatedAt = time.Now()
	q.state.sales = append(q.state.sales, *sale)
	return nil
}

func (q *memQueries) ListPurchaseHistory(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error) {
	history := []models.PurchaseRecord{}
	for _, s := range q.state.sales {
		if s.CustomerID != customerID {
			continue
		}
		history = append(history, models.PurchaseRecord{
			SaleID:     s.ID,
			ItemName:   q.state.items[s.ItemID].Name,
			Quantity:   s.Quantity,
			Price:      s.Price,
			TotalPrice: s.TotalPrice,
			Timestamp:  s.CreatedAt,
		})
	}
	return history, nil
}

func (q *memQueries) CreateReview(ctx context.Context, review *models.Review) error {
	q.state.nextID++
	review.ID = q.state.nextID
	review.UpdatedAt = time.Now()
	q.state.reviews[review.ID] = *review
	return nil
}

func (q *memQueries) GetReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	r, ok := q.state.reviews[reviewID]
	if !ok {
		return nil, apperr.NotFound("review", strconv.FormatInt(reviewID, 10))
	}
	return &r, nil
}

func (q *memQueries) LockReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	return q.GetReview(ctx, reviewID)
}

func (q *memQueries) UpdateReviewContent(ctx context.Context, review *models.Review) error {
	if _, ok := q.state.reviews[review.ID]; !ok {
		return apperr.NotFound("review", strconv.FormatInt(review.ID, 10))
	}
	review.Status = models.ReviewStatusPending
	review.UpdatedAt = time.Now()
	q.state.reviews[review.ID] = *review
	return nil
}

func (q *memQueries) SetReviewStatus(ctx context.Context, reviewID int64, status models.ReviewStatus) error {
	r, ok := q.state.reviews[reviewID]
	if !ok {
		return apperr.NotFound("review", strconv.FormatInt(reviewID, 10))
	}
	r.Status = status
	q.state.reviews[reviewID] = r
	return nil
}

func (q *memQueries) DeleteReview(ctx context.Context, reviewID int64) error {
	if _, ok := q.state.reviews[reviewID]; !ok {
		return apperr.NotFound("review", strconv.FormatInt(reviewID, 10))
	}
	delete(q.state.reviews, reviewID)
	return nil
}

func (q *memQueries) sortedReviews() []models.Review {
	reviews := make([]models.Review, 0, len(q.state.reviews))
	for _, r := range q.state.reviews {
		reviews = append(reviews, r)
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].ID < reviews[j].ID })
	return reviews
}

func (q *memQueries) details(r models.Review) models.ReviewDetails {
	return models.ReviewDetails{
		ReviewID:  r.ID,
		Username:  q.state.customers[r.CustomerID].Username,
		ItemName:  q.state.items[r.ItemID].Name,
		Rating:    r.Rating,
		Comment:   r.Comment,
		Status:    r.Status,
		Timestamp: r.UpdatedAt,
	}
}

func (q *memQueries) ListApprovedReviewsByItem(ctx context.Context, itemID int64) ([]models.ProductReview, error) {
	reviews := []models.ProductReview{}
	for _, r := range q.sortedReviews() {
		if r.ItemID != itemID || r.Status != models.ReviewStatusApproved {
			continue
		}
		reviews = append(reviews, models.ProductReview{
			ReviewID:  r.ID,
			Username:  q.state.customers[r.CustomerID].Username,
			Rating:    r.Rating,
			Comment:   r.Comment,
			Timestamp: r.UpdatedAt,
		})
	}
	return reviews, nil
}

func (q *memQueries) ListReviewsByCustomer(ctx context.Context, customerID int64) ([]models.CustomerReview, error) {
	reviews := []models.CustomerReview{}
	for _, r := range q.sortedReviews() {
		if r.CustomerID != customerID {
			continue
		}
		reviews = append(reviews, models.CustomerReview{
			ReviewID:  r.ID,
			ItemName:  q.state.items[r.ItemID].Name,
			Rating:    r.Rating,
			Comment:   r.Comment,
			Status:    r.Status,
			Timestamp: r.UpdatedAt,
		})
	}
	return reviews, nil
}

func (q *memQueries) ListReviewsByStatus(ctx context.Context, status models.ReviewStatus) ([]models.ReviewDetails, error) {
	reviews := []models.ReviewDetails{}
	for _, r := range q.sortedReviews() {
		if r.Status == status {
			reviews = append(reviews, q.details(r))
		}
	}
	return reviews, nil
}

func (q *memQueries) GetReviewDetails(ctx context.Context, reviewID int64) (*models.ReviewDetails, error) {
	r, ok := q.state.reviews[reviewID]
	if !ok {
		return nil, apperr.NotFound("review", strconv.FormatInt(reviewID, 10))
	}
	d := q.details(r)
	return &d, nil
}

func (q *memQueries) InsertOutboxEvent(ctx context.Context, aggregateType string, aggregateID int64, eventType string, payload []byte) error {
	q.state.nextID++
	q.state.outbox = append(q.state.outbox, models.OutboxEvent{
		ID:            q.state.nextID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now(),
	})
	return nil
}

// memCache is a map-backed Cache that records deletions
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

var (
	_ store.Repository = (*memStore)(nil)
	_ store.Queries    = (*memQueries)(nil)
	_ Cache            = (*memCache)(nil)
)
