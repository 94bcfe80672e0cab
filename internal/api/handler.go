package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SalesService is the purchase side used by the sales routes
type SalesService interface {
	Purchase(ctx context.Context, req service.PurchaseRequest) (*service.PurchaseResult, error)
	ListAvailableGoods(ctx context.Context) ([]models.Good, error)
	GoodDetails(ctx context.Context, name string) (*models.GoodDetails, error)
	PurchaseHistory(ctx context.Context, username string) ([]models.PurchaseRecord, error)
}

// ReviewService is the review lifecycle used by the review routes
type ReviewService interface {
	Submit(ctx context.Context, req service.SubmitReviewRequest) (*models.Review, error)
	Edit(ctx context.Context, reviewID int64, req service.EditReviewRequest) (*models.Review, error)
	Delete(ctx context.Context, reviewID int64, username string) error
	Moderate(ctx context.Context, reviewID int64, action models.ModerationAction) (*service.ModerationResult, error)
	ProductReviews(ctx context.Context, itemName string) ([]models.ProductReview, error)
	CustomerReviews(ctx context.Context, username string) ([]models.CustomerReview, error)
	ReviewDetails(ctx context.Context, reviewID int64) (*models.ReviewDetails, error)
	FlaggedReviews(ctx context.Context) ([]models.ReviewDetails, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	sales   SalesService
	reviews ReviewService
	db      Pinger
	tokens  *auth.JWTManager
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. tokens may be nil, in which case
// bearer tokens are ignored.
func NewHandler(sales SalesService, reviews ReviewService, db Pinger, tokens *auth.JWTManager) *Handler {
	return &Handler{
		sales:   sales,
		reviews: reviews,
		db:      db,
		tokens:  tokens,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authenticate(h.tokens))

	sales := v1.Group("/sales")
	{
		sales.GET("/goods", h.listGoods)
		sales.GET("/goods/:name", h.getGood)
		sales.POST("/purchase", h.purchase)
		sales.GET("/purchase_history/:username", h.purchaseHistory)
	}

	reviews := v1.Group("/reviews")
	{
		reviews.POST("/submit", h.submitReview)
		reviews.PUT("/update/:id", h.updateReview)
		reviews.DELETE("/delete/:id", h.deleteReview)
		reviews.POST("/moderate/:id", h.moderateReview)
		reviews.GET("/product_reviews/:item", h.productReviews)
		reviews.GET("/customer_reviews/:username", h.customerReviews)
		reviews.GET("/flagged", h.flaggedReviews)
		reviews.GET("/review/:id", h.reviewDetails)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only while the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type purchaseRequest struct {
	Username string `json:"username" binding:"required"`
	ItemName string `json:"item_name" binding:"required"`
	Quantity *int   `json:"quantity"`
}

func (h *Handler) purchase(c *gin.Context) {
	var req purchaseRequest
	if !h.bind(c, &req) {
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.sales.Purchase(c.Request.Context(), service.PurchaseRequest{
		Username: req.Username,
		ItemName: req.ItemName,
		Quantity: quantity,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) listGoods(c *gin.Context) {
	goods, err := h.sales.ListAvailableGoods(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, goods)
}

func (h *Handler) getGood(c *gin.Context) {
	details, err := h.sales.GoodDetails(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) purchaseHistory(c *gin.Context) {
	history, err := h.sales.PurchaseHistory(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type submitReviewRequest struct {
	Username string `json:"username" binding:"required"`
	ItemName string `json:"item_name" binding:"required"`
	Rating   *int   `json:"rating"`
	Comment  string `json:"comment"`
}

func (h *Handler) submitReview(c *gin.Context) {
	var req submitReviewRequest
	if !h.bind(c, &req) {
		return
	}

	// A missing rating is reported the same way as an out of range one.
	rating := 0
	if req.Rating != nil {
		rating = *req.Rating
	}

	review, err := h.reviews.Submit(c.Request.Context(), service.SubmitReviewRequest{
		Username: req.Username,
		ItemName: req.ItemName,
		Rating:   rating,
		Comment:  req.Comment,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review submitted successfully.",
		"review":  review,
	})
}

type updateReviewRequest struct {
	Username string  `json:"username" binding:"required"`
	Rating   *int    `json:"rating"`
	Comment  *string `json:"comment"`
}

func (h *Handler) updateReview(c *gin.Context) {
	reviewID, ok := h.reviewID(c)
	if !ok {
		return
	}

	var req updateReviewRequest
	if !h.bind(c, &req) {
		return
	}

	review, err := h.reviews.Edit(c.Request.Context(), reviewID, service.EditReviewRequest{
		Username: req.Username,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review updated successfully.",
		"review":  review,
	})
}

type deleteReviewRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
}

func (h *Handler) deleteReview(c *gin.Context) {
	reviewID, ok := h.reviewID(c)
	if !ok {
		return
	}

	// DELETE bodies are often stripped by proxies, so ?username= works too.
	var req deleteReviewRequest
	if username := c.Query("username"); username != "" {
		req.Username = username
	} else if !h.bind(c, &req) {
		return
	}

	if err := h.reviews.Delete(c.Request.Context(), reviewID, req.Username); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review deleted successfully."})
}

type moderateRequest struct {
	Action string `json:"action"`
}

func (h *Handler) moderateReview(c *gin.Context) {
	reviewID, ok := h.reviewID(c)
	if !ok {
		return
	}

	var req moderateRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.reviews.Moderate(c.Request.Context(), reviewID, models.ModerationAction(req.Action))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) productReviews(c *gin.Context) {
	reviews, err := h.reviews.ProductReviews(c.Request.Context(), c.Param("item"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) customerReviews(c *gin.Context) {
	reviews, err := h.reviews.CustomerReviews(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) flaggedReviews(c *gin.Context) {
	reviews, err := h.reviews.FlaggedReviews(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) reviewDetails(c *gin.Context) {
	reviewID, ok := h.reviewID(c)
	if !ok {
		return
	}

	details, err := h.reviews.ReviewDetails(c.Request.Context(), reviewID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) reviewID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, apperr.New(apperr.KindInvalidInput, "Invalid review ID", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.writeError(c, apperr.New(apperr.KindInvalidInput, "Invalid request body", err.Error()))
		return false
	}
	return true
}

// writeError renders err as {"error", "code", "details"} with its HTTP status
func (h *Handler) writeError(c *gin.Context, err error) {
	appErr := apperr.From(err)

	if appErr.Kind == apperr.KindInternal {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus(), appErr)
}
