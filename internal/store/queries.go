package store

import (
	"context"
	"database/sql"
	"errors"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// queries runs against either the pool or a transaction
type queries struct {
	ext sqlx.ExtContext
}

const customerColumns = "id, username, full_name, wallet, created_at"

const itemColumns = "id, name, category, price, description, stock, created_at"

// GetCustomerByUsername retrieves a customer by username
func (q *queries) GetCustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	return q.getCustomer(ctx, "SELECT "+customerColumns+" FROM customers WHERE username = $1", username)
}

// LockCustomerByUsername retrieves a customer and holds its row lock until the tx ends
func (q *queries) LockCustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	return q.getCustomer(ctx, "SELECT "+customerColumns+" FROM customers WHERE username = $1 FOR UPDATE", username)
}

func (q *queries) getCustomer(ctx context.Context, query, username string) (*models.Customer, error) {
	var customer models.Customer
	err := sqlx.GetContext(ctx, q.ext, &customer, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("customer", username)
	}
	if err != nil {
		return nil, mapDBError("failed to load customer", err)
	}
	return &customer, nil
}

// DebitWallet subtracts amount from the wallet, never below zero
func (q *queries) DebitWallet(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE customers SET wallet = wallet - $1 WHERE id = $2 AND wallet >= $1",
		amount, customerID)
	if err != nil {
		return mapDBError("failed to debit wallet", err)
	}
	return expectOneRow(res, "wallet changed concurrently")
}

// GetItemByName retrieves an inventory item by name
func (q *queries) GetItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return q.getItem(ctx, "SELECT "+itemColumns+" FROM inventory_items WHERE name = $1", name)
}

// LockItemByName retrieves an item and holds its row lock until the tx ends
func (q *queries) LockItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return q.getItem(ctx, "SELECT "+itemColumns+" FROM inventory_items WHERE name = $1 FOR UPDATE", name)
}

func (q *queries) getItem(ctx context.Context, query, name string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := sqlx.GetContext(ctx, q.ext, &item, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("item", name)
	}
	if err != nil {
		return nil, mapDBError("failed to load item", err)
	}
	return &item, nil
}

// DecrementStock removes quantity units from stock, never below zero
func (q *queries) DecrementStock(ctx context.Context, itemID int64, quantity int) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE inventory_items SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		quantity, itemID)
	if err != nil {
		return mapDBError("failed to decrement stock", err)
	}
	return expectOneRow(res, "stock changed concurrently")
}

// ListAvailableGoods returns items with stock > 0 in table order
func (q *queries) ListAvailableGoods(ctx context.Context) ([]models.Good, error) {
	goods := []models.Good{}
	err := sqlx.SelectContext(ctx, q.ext, &goods,
		"SELECT name, price FROM inventory_items WHERE stock > 0 ORDER BY id")
	if err != nil {
		return nil, mapDBError("failed to list goods", err)
	}
	return goods, nil
}

func expectOneRow(res sql.Result, conflictMessage string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return mapDBError("failed to read rows affected", err)
	}
	if rows == 0 {
		return apperr.Conflict(conflictMessage, nil)
	}
	return nil
}
