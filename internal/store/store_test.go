package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError(t *testing.T) {
	serialization := &pq.Error{Code: "40001", Message: "could not serialize access"}
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(mapDBError("commit", serialization)))

	deadlock := fmt.Errorf("exec: %w", &pq.Error{Code: "40P01"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(mapDBError("commit", deadlock)))

	uniqueViolation := &pq.Error{Code: "23505"}
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(mapDBError("insert", uniqueViolation)))

	notFound := apperr.NotFound("customer", "bob")
	assert.Same(t, notFound, mapDBError("ignored", notFound))
}

// Integration tests below need a disposable Postgres database.
func openTestStore(t *testing.T) *Store {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	_, err = store.db.ExecContext(ctx,
		"TRUNCATE customers, inventory_items, sales, reviews, outbox_events RESTART IDENTITY")
	require.NoError(t, err)

	return store
}

func seed(t *testing.T, s *Store, username, wallet, item, price string, stock int) {
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO customers (username, full_name, wallet) VALUES ($1, $1, $2)", username, wallet)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO inventory_items (name, category, price, stock) VALUES ($1, 'electronics', $2, $3)",
		item, price, stock)
	require.NoError(t, err)
}

func TestPurchaseTransaction(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "alice", "1100.00", "Laptop", "999.99", 10)
	ctx := context.Background()

	err := s.InTx(ctx, func(q Queries) error {
		customer, err := q.LockCustomerByUsername(ctx, "alice")
		if err != nil {
			return err
		}
		item, err := q.LockItemByName(ctx, "Laptop")
		if err != nil {
			return err
		}
		if err := q.DebitWallet(ctx, customer.ID, item.Price); err != nil {
			return err
		}
		if err := q.DecrementStock(ctx, item.ID, 1); err != nil {
			return err
		}
		return q.CreateSale(ctx, &models.Sale{
			CustomerID: customer.ID,
			ItemID:     item.ID,
			Quantity:   1,
			Price:      item.Price,
			TotalPrice: item.Price,
		})
	})
	require.NoError(t, err)

	customer, err := s.GetCustomerByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100.01").Equal(customer.Wallet))

	item, err := s.GetItemByName(ctx, "Laptop")
	require.NoError(t, err)
	assert.Equal(t, 9, item.Stock)

	history, err := s.ListPurchaseHistory(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Laptop", history[0].ItemName)
	assert.True(t, decimal.RequireFromString("999.99").Equal(history[0].TotalPrice))
}

// buyOne runs the purchase steps: lock customer, lock item, check stock,
// debit, decrement and record the sale.
func buyOne(ctx context.Context, s *Store, username, itemName string) error {
	return s.InTx(ctx, func(q Queries) error {
		customer, err := q.LockCustomerByUsername(ctx, username)
		if err != nil {
			return err
		}
		item, err := q.LockItemByName(ctx, itemName)
		if err != nil {
			return err
		}
		if item.Stock < 1 {
			return apperr.InsufficientStock(item.Stock, 1)
		}
		if err := q.DebitWallet(ctx, customer.ID, item.Price); err != nil {
			return err
		}
		if err := q.DecrementStock(ctx, item.ID, 1); err != nil {
			return err
		}
		return q.CreateSale(ctx, &models.Sale{
			CustomerID: customer.ID,
			ItemID:     item.ID,
			Quantity:   1,
			Price:      item.Price,
			TotalPrice: item.Price,
		})
	})
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	s := openTestStore(t)
	const (
		stock   = 5
		buyers  = 16
		price   = "19.99"
		balance = "1000.00"
	)
	seed(t, s, "erin", balance, "Headset", price, stock)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, buyers)
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = buyOne(ctx, s, "erin", "Headset")
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		kind := apperr.KindOf(err)
		assert.Contains(t, []apperr.Kind{apperr.KindInsufficientStock, apperr.KindConflict}, kind, err.Error())
	}
	assert.Equal(t, stock, succeeded)

	item, err := s.GetItemByName(ctx, "Headset")
	require.NoError(t, err)
	assert.Equal(t, 0, item.Stock)

	customer, err := s.GetCustomerByUsername(ctx, "erin")
	require.NoError(t, err)
	spent := decimal.RequireFromString(price).Mul(decimal.NewFromInt(stock))
	assert.True(t, decimal.RequireFromString(balance).Sub(spent).Equal(customer.Wallet),
		"wallet %s", customer.Wallet)

	history, err := s.ListPurchaseHistory(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, history, stock)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "bob", "50.00", "Mouse", "20.00", 5)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(q Queries) error {
		customer, err := q.LockCustomerByUsername(ctx, "bob")
		if err != nil {
			return err
		}
		if err := q.DebitWallet(ctx, customer.ID, decimal.NewFromInt(20)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	customer, err := s.GetCustomerByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(customer.Wallet))
}

func TestConditionalUpdatesRefuseNegative(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "carol", "10.00", "Cable", "5.00", 1)
	ctx := context.Background()

	customer, err := s.GetCustomerByUsername(ctx, "carol")
	require.NoError(t, err)
	item, err := s.GetItemByName(ctx, "Cable")
	require.NoError(t, err)

	err = s.DebitWallet(ctx, customer.ID, decimal.NewFromInt(11))
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	err = s.DecrementStock(ctx, item.ID, 2)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestReviewLifecycle(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "dave", "0", "Desk", "150.00", 3)
	ctx := context.Background()

	customer, err := s.GetCustomerByUsername(ctx, "dave")
	require.NoError(t, err)
	item, err := s.GetItemByName(ctx, "Desk")
	require.NoError(t, err)

	review := &models.Review{
		CustomerID: customer.ID,
		ItemID:     item.ID,
		Rating:     4,
		Comment:    "solid",
		Status:     models.ReviewStatusPending,
	}
	require.NoError(t, s.CreateReview(ctx, review))
	assert.NotZero(t, review.ID)

	require.NoError(t, s.SetReviewStatus(ctx, review.ID, models.ReviewStatusApproved))
	approved, err := s.ListApprovedReviewsByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "dave", approved[0].Username)

	before := review.UpdatedAt
	time.Sleep(10 * time.Millisecond)
	review.Comment = "wobbly after a week"
	require.NoError(t, s.UpdateReviewContent(ctx, review))
	assert.Equal(t, models.ReviewStatusPending, review.Status)
	assert.True(t, review.UpdatedAt.After(before))

	require.NoError(t, s.DeleteReview(ctx, review.ID))
	_, err = s.GetReviewDetails(ctx, review.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOutboxRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOutboxEvent(ctx, models.AggregateSale, 7, models.EventTypePurchaseCompleted,
		[]byte(`{"sale_id":7}`)))

	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"sale_id":7}`, string(pending[0].Payload))

	require.NoError(t, s.MarkOutboxSent(ctx, pending[0].ID))
	pending, err = s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
