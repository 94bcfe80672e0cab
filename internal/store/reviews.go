package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const reviewColumns = "id, customer_id, item_id, rating, comment, status, updated_at"

// CreateReview inserts a review and fills in its id and timestamp
func (q *queries) CreateReview(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (customer_id, item_id, rating, comment, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, updated_at`

	row := q.ext.QueryRowxContext(ctx, query,
		review.CustomerID, review.ItemID, review.Rating, review.Comment, review.Status)
	if err := row.Scan(&review.ID, &review.UpdatedAt); err != nil {
		return mapDBError("failed to create review", err)
	}
	return nil
}

// GetReview retrieves a review by ID
func (q *queries) GetReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	return q.getReview(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id = $1", reviewID)
}

// LockReview retrieves a review and holds its row lock until the tx ends
func (q *queries) LockReview(ctx context.Context, reviewID int64) (*models.Review, error) {
	return q.getReview(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id = $1 FOR UPDATE", reviewID)
}

func (q *queries) getReview(ctx context.Context, query string, reviewID int64) (*models.Review, error) {
	var review models.Review
	err := sqlx.GetContext(ctx, q.ext, &review, query, reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reviewNotFound(reviewID)
	}
	if err != nil {
		return nil, mapDBError("failed to load review", err)
	}
	return &review, nil
}

// UpdateReviewContent overwrites rating and comment and puts the review back to pending
func (q *queries) UpdateReviewContent(ctx context.Context, review *models.Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, comment = $2, status = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`

	row := q.ext.QueryRowxContext(ctx, query,
		review.Rating, review.Comment, models.ReviewStatusPending, review.ID)
	err := row.Scan(&review.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reviewNotFound(review.ID)
	}
	if err != nil {
		return mapDBError("failed to update review", err)
	}
	review.Status = models.ReviewStatusPending
	return nil
}

// SetReviewStatus applies a moderation outcome
func (q *queries) SetReviewStatus(ctx context.Context, reviewID int64, status models.ReviewStatus) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE reviews SET status = $1 WHERE id = $2", status, reviewID)
	if err != nil {
		return mapDBError("failed to update review status", err)
	}
	return expectReviewRow(res, reviewID)
}

// DeleteReview removes a review
func (q *queries) DeleteReview(ctx context.Context, reviewID int64) error {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", reviewID)
	if err != nil {
		return mapDBError("failed to delete review", err)
	}
	return expectReviewRow(res, reviewID)
}

// ListApprovedReviewsByItem returns the approved reviews of an item
func (q *queries) ListApprovedReviewsByItem(ctx context.Context, itemID int64) ([]models.ProductReview, error) {
	query := `
		SELECT r.id AS review_id, COALESCE(c.username, '') AS username, r.rating, r.comment, r.updated_at
		FROM reviews r
		LEFT JOIN customers c ON c.id = r.customer_id
		WHERE r.item_id = $1 AND r.status = $2
		ORDER BY r.id`

	reviews := []models.ProductReview{}
	if err := sqlx.SelectContext(ctx, q.ext, &reviews, query, itemID, models.ReviewStatusApproved); err != nil {
		return nil, mapDBError("failed to list product reviews", err)
	}
	return reviews, nil
}

// ListReviewsByCustomer returns every review a customer wrote, any status
func (q *queries) ListReviewsByCustomer(ctx context.Context, customerID int64) ([]models.CustomerReview, error) {
	query := `
		SELECT r.id AS review_id, COALESCE(i.name, '') AS item_name, r.rating, r.comment, r.status, r.updated_at
		FROM reviews r
		LEFT JOIN inventory_items i ON i.id = r.item_id
		WHERE r.customer_id = $1
		ORDER BY r.id`

	reviews := []models.CustomerReview{}
	if err := sqlx.SelectContext(ctx, q.ext, &reviews, query, customerID); err != nil {
		return nil, mapDBError("failed to list customer reviews", err)
	}
	return reviews, nil
}

const reviewDetailsQuery = `
	SELECT r.id AS review_id, COALESCE(c.username, '') AS username, COALESCE(i.name, '') AS item_name,
	       r.rating, r.comment, r.status, r.updated_at
	FROM reviews r
	LEFT JOIN customers c ON c.id = r.customer_id
	LEFT JOIN inventory_items i ON i.id = r.item_id`

// ListReviewsByStatus returns all reviews currently in status
func (q *queries) ListReviewsByStatus(ctx context.Context, status models.ReviewStatus) ([]models.ReviewDetails, error) {
	reviews := []models.ReviewDetails{}
	err := sqlx.SelectContext(ctx, q.ext, &reviews,
		reviewDetailsQuery+" WHERE r.status = $1 ORDER BY r.id", status)
	if err != nil {
		return nil, mapDBError("failed to list reviews", err)
	}
	return reviews, nil
}

// GetReviewDetails returns one review with author and item names
func (q *queries) GetReviewDetails(ctx context.Context, reviewID int64) (*models.ReviewDetails, error) {
	var details models.ReviewDetails
	err := sqlx.GetContext(ctx, q.ext, &details, reviewDetailsQuery+" WHERE r.id = $1", reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reviewNotFound(reviewID)
	}
	if err != nil {
		return nil, mapDBError("failed to load review", err)
	}
	return &details, nil
}

func expectReviewRow(res sql.Result, reviewID int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return mapDBError("failed to read rows affected", err)
	}
	if rows == 0 {
		return reviewNotFound(reviewID)
	}
	return nil
}

func reviewNotFound(reviewID int64) *apperr.Error {
	return apperr.NotFound("review", strconv.FormatInt(reviewID, 10))
}
