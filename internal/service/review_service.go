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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReviewService manages the review lifecycle:
//
//	submit                  -> pending
//	author edit             -> pending (always, even for comment-only edits)
//	moderate approve / flag -> approved / flagged
//	author or moderator delete removes the row
type ReviewService struct {
	repo     store.Repository
	cache    Cache
	cacheTTL time.Duration
	policy   ModerationPolicy
	logger   *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(repo store.Repository, cache Cache, cacheTTL time.Duration, policy ModerationPolicy) *ReviewService {
	return &ReviewService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		policy:   policy,
		logger:   util.GetLogger(),
	}
}

// SubmitReviewRequest is a new review from Username on ItemName
type SubmitReviewRequest struct {
	Username string
	ItemName string
	Rating   int
	Comment  string
}

// EditReviewRequest changes the fields that are non-nil
type EditReviewRequest struct {
	Username string
	Rating   *int
	Comment  *string
}

const errInvalidRating = "Rating must be an integer between 1 and 5."

// Submit creates a pending review
func (s *ReviewService) Submit(ctx context.Context, req SubmitReviewRequest) (review *models.Review, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Submit",
		attribute.String("customer", req.Username),
		attribute.String("item", req.ItemName))
	defer func() { s.finish(span, "submit", err) }()

	if !models.ValidRating(req.Rating) {
		return nil, apperr.InvalidInput(errInvalidRating)
	}

	review = &models.Review{
		Rating:  req.Rating,
		Comment: req.Comment,
		Status:  models.ReviewStatusPending,
	}

	err = s.repo.InTx(ctx, func(q store.Queries) error {
		customer, err := q.GetCustomerByUsername(ctx, req.Username)
		if err != nil {
			return err
		}
		item, err := q.GetItemByName(ctx, req.ItemName)
		if err != nil {
			return err
		}

		review.CustomerID = customer.ID
		review.ItemID = item.ID
		if err := q.CreateReview(ctx, review); err != nil {
			return err
		}

		event := &models.ReviewSubmittedEvent{
			BaseEvent:  models.NewBaseEvent(models.EventTypeReviewSubmitted),
			ReviewID:   review.ID,
			CustomerID: customer.ID,
			ItemID:     item.ID,
			Rating:     review.Rating,
		}
		return appendEvent(ctx, q, models.AggregateReview, review.ID, event.EventType, event)
	})
	if err != nil {
		return nil, err
	}

	util.ReviewsSubmittedTotal.Inc()
	s.logger.Info("Review submitted",
		zap.Int64("review_id", review.ID),
		zap.String("customer", req.Username),
		zap.String("item", req.ItemName))
	return review, nil
}

// Edit lets the author change rating and/or comment. Any successful edit
// sends the review back to pending.
func (s *ReviewService) Edit(ctx context.Context, reviewID int64, req EditReviewRequest) (review *models.Review, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Edit",
		attribute.Int64("review_id", reviewID),
		attribute.String("customer", req.Username))
	defer func() { s.finish(span, "edit", err) }()

	err = s.repo.InTx(ctx, func(q store.Queries) error {
		var err error
		review, err = s.lockOwnReview(ctx, q, reviewID, req.Username, "You can only update your own reviews.")
		if err != nil {
			return err
		}

		if req.Rating != nil {
			if !models.ValidRating(*req.Rating) {
				return apperr.InvalidInput(errInvalidRating)
			}
			review.Rating = *req.Rating
		}
		if req.Comment != nil {
			review.Comment = *req.Comment
		}

		if err := q.UpdateReviewContent(ctx, review); err != nil {
			return err
		}

		event := &models.ReviewUpdatedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeReviewUpdated),
			ReviewID:  review.ID,
			ItemID:    review.ItemID,
			Rating:    review.Rating,
		}
		return appendEvent(ctx, q, models.AggregateReview, review.ID, event.EventType, event)
	})
	if err != nil {
		return nil, err
	}

	// An approved review drops out of the product listing once edited.
	invalidate(ctx, s.cache, redisclient.ProductReviewsKey(review.ItemID))

	util.ReviewTransitionsTotal.WithLabelValues("edit").Inc()
	s.logger.Info("Review updated", zap.Int64("review_id", review.ID), zap.String("customer", req.Username))
	return review, nil
}

// Delete removes a review on behalf of its author
func (s *ReviewService) Delete(ctx context.Context, reviewID int64, username string) (err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Delete",
		attribute.Int64("review_id", reviewID),
		attribute.String("customer", username))
	defer func() { s.finish(span, "delete", err) }()

	var itemID int64
	err = s.repo.InTx(ctx, func(q store.Queries) error {
		review, err := s.lockOwnReview(ctx, q, reviewID, username, "You can only delete your own reviews.")
		if err != nil {
			return err
		}
		itemID = review.ItemID
		return s.removeReview(ctx, q, review, models.DeletedByAuthor)
	})
	if err != nil {
		return err
	}

	invalidate(ctx, s.cache, redisclient.ProductReviewsKey(itemID))

	util.ReviewTransitionsTotal.WithLabelValues("author_delete").Inc()
	s.logger.Info("Review deleted by author", zap.Int64("review_id", reviewID), zap.String("customer", username))
	return nil
}

// ModerationResult reports the outcome of a moderation action
type ModerationResult struct {
	Message string              `json:"message"`
	Status  models.ReviewStatus `json:"status,omitempty"`
	Deleted bool                `json:"deleted"`
}

// Moderate applies approve, flag or delete to a review. The configured
// ModerationPolicy decides whether the caller may do so.
func (s *ReviewService) Moderate(ctx context.Context, reviewID int64, action models.ModerationAction) (result *ModerationResult, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Moderate",
		attribute.Int64("review_id", reviewID),
		attribute.String("action", string(action)))
	defer func() { s.finish(span, "moderate", err) }()

	if !action.Valid() {
		return nil, apperr.InvalidInput("Invalid action. Must be 'approve', 'flag', or 'delete'.")
	}

	if err := s.policy.Authorize(ctx, reviewID, action); err != nil {
		return nil, err
	}

	var itemID int64
	err = s.repo.InTx(ctx, func(q store.Queries) error {
		review, err := q.LockReview(ctx, reviewID)
		if err != nil {
			return err
		}
		itemID = review.ItemID

		status, keep := action.TargetStatus()
		if !keep {
			result = &ModerationResult{Message: "Review deleted successfully.", Deleted: true}
			return s.removeReview(ctx, q, review, models.DeletedByModerator)
		}

		if err := q.SetReviewStatus(ctx, review.ID, status); err != nil {
			return err
		}
		result = &ModerationResult{
			Message: fmt.Sprintf("Review %s successfully.", status),
			Status:  status,
		}

		event := &models.ReviewModeratedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeReviewModerated),
			ReviewID:  review.ID,
			ItemID:    review.ItemID,
			Action:    action,
			Status:    status,
		}
		return appendEvent(ctx, q, models.AggregateReview, review.ID, event.EventType, event)
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.cache, redisclient.ProductReviewsKey(itemID))

	util.ReviewTransitionsTotal.WithLabelValues(string(action)).Inc()
	s.logger.Info("Review moderated",
		zap.Int64("review_id", reviewID),
		zap.String("action", string(action)))
	return result, nil
}

// ProductReviews returns the approved reviews of an item
func (s *ReviewService) ProductReviews(ctx context.Context, itemName string) (reviews []models.ProductReview, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.ProductReviews", attribute.String("item", itemName))
	defer func() { util.EndSpan(span, err) }()

	item, err := s.repo.GetItemByName(ctx, itemName)
	if err != nil {
		return nil, err
	}

	return readThrough(ctx, s.cache, s.cacheTTL, "product_reviews", redisclient.ProductReviewsKey(item.ID),
		func() ([]models.ProductReview, error) {
			return s.repo.ListApprovedReviewsByItem(ctx, item.ID)
		})
}

// CustomerReviews returns every review a customer wrote, with its status
func (s *ReviewService) CustomerReviews(ctx context.Context, username string) (reviews []models.CustomerReview, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.CustomerReviews", attribute.String("customer", username))
	defer func() { util.EndSpan(span, err) }()

	customer, err := s.repo.GetCustomerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReviewsByCustomer(ctx, customer.ID)
}

// ReviewDetails returns a review regardless of status
func (s *ReviewService) ReviewDetails(ctx context.Context, reviewID int64) (details *models.ReviewDetails, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.ReviewDetails", attribute.Int64("review_id", reviewID))
	defer func() { util.EndSpan(span, err) }()

	return s.repo.GetReviewDetails(ctx, reviewID)
}

// FlaggedReviews returns the reviews currently flagged by moderators
func (s *ReviewService) FlaggedReviews(ctx context.Context) (reviews []models.ReviewDetails, err error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.FlaggedReviews")
	defer func() { util.EndSpan(span, err) }()

	return s.repo.ListReviewsByStatus(ctx, models.ReviewStatusFlagged)
}

// lockOwnReview loads and locks a review, then checks that username wrote it.
// An unknown username is treated the same as somebody else's.
func (s *ReviewService) lockOwnReview(ctx context.Context, q store.Queries, reviewID int64, username, denied string) (*models.Review, error) {
	review, err := q.LockReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	customer, err := q.GetCustomerByUsername(ctx, username)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	if customer == nil || customer.ID != review.CustomerID {
		return nil, apperr.Forbidden(denied)
	}
	return review, nil
}

func (s *ReviewService) removeReview(ctx context.Context, q store.Queries, review *models.Review, deletedBy string) error {
	if err := q.DeleteReview(ctx, review.ID); err != nil {
		return err
	}

	event := &models.ReviewDeletedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReviewDeleted),
		ReviewID:  review.ID,
		ItemID:    review.ItemID,
		DeletedBy: deletedBy,
	}
	return appendEvent(ctx, q, models.AggregateReview, review.ID, event.EventType, event)
}

// finish counts a failed mutating operation and ends its span
func (s *ReviewService) finish(span trace.Span, operation string, err error) {
	if err != nil {
		util.ReviewOperationsFailedTotal.WithLabelValues(operation, reasonLabel(err)).Inc()
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("Review operation failed", zap.String("operation", operation), zap.Error(err))
		} else {
			s.logger.Debug("Review operation rejected", zap.String("operation", operation), zap.Error(err))
		}
	}
	util.EndSpan(span, err)
}
