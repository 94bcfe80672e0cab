package store

import (
	"context"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateSale inserts a sale and fills in its id and timestamp
func (q *queries) CreateSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (customer_id, item_id, quantity, price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	row := q.ext.QueryRowxContext(ctx, query,
		sale.CustomerID, sale.ItemID, sale.Quantity, sale.Price, sale.TotalPrice)
	if err := row.Scan(&sale.ID, &sale.CreatedAt); err != nil {
		return mapDBError("failed to record sale", err)
	}
	return nil
}

// ListPurchaseHistory returns a customer's sales in insertion order
func (q *queries) ListPurchaseHistory(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error) {
	query := `
		SELECT s.id AS sale_id, COALESCE(i.name, '') AS item_name, s.quantity, s.price, s.total_price, s.created_at
		FROM sales s
		LEFT JOIN inventory_items i ON i.id = s.item_id
		WHERE s.customer_id = $1
		ORDER BY s.id`

	history := []models.PurchaseRecord{}
	if err := sqlx.SelectContext(ctx, q.ext, &history, query, customerID); err != nil {
		return nil, mapDBError("failed to load purchase history", err)
	}
	return history, nil
}
