package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/auth"
	"shop-service/internal/broker"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "shop-service"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service")

	policy, tokens, err := moderationPolicy(cfg, logger)
	if err != nil {
		logger.Fatal("Invalid moderation policy", zap.Error(err))
	}

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected")

	var cache service.Cache = redisclient.NopCache{}
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, read cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	purchaseService := service.NewPurchaseService(db, cache, cfg.Business.CacheTTL)
	reviewService := service.NewReviewService(db, cache, cfg.Business.CacheTTL, policy)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	relay := worker.NewOutboxRelay(db, broker.NewEventPublisher(producer),
		cfg.Business.OutboxPollInterval, cfg.Business.OutboxBatchSize)
	go func() {
		if err := relay.Start(workerCtx); err != nil {
			logger.Error("Outbox relay error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(purchaseService, reviewService, db, tokens)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	// Let the relay finish its current pass before the producer closes.
	workerCancel()
	relay.Wait()

	logger.Info("Server exited")
}

// moderationPolicy picks who may moderate reviews. The JWT manager is only
// returned when tokens are actually checked.
func moderationPolicy(cfg *config.Config, logger *zap.Logger) (service.ModerationPolicy, *auth.JWTManager, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, nil, err
	}

	if cfg.Auth.ModerationPolicy == config.ModerationPolicyJWT {
		tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
		return auth.NewModeratorPolicy(logger), tokens, nil
	}

	logger.Warn("Moderation routes are open to every caller", zap.String("policy", cfg.Auth.ModerationPolicy))
	return auth.TrustedCallerPolicy{}, nil, nil
}
