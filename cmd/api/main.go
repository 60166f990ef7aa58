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

	"github.com/jmoiron/sqlx"

	"github.com/medleaf/pharmacy-backend/internal/adapters/cache"
	"github.com/medleaf/pharmacy-backend/internal/adapters/database"
	"github.com/medleaf/pharmacy-backend/internal/adapters/events"
	"github.com/medleaf/pharmacy-backend/internal/adapters/providers/orders"
	"github.com/medleaf/pharmacy-backend/internal/adapters/providers/storage"
	"github.com/medleaf/pharmacy-backend/internal/api/handlers"
	"github.com/medleaf/pharmacy-backend/internal/api/middleware"
	"github.com/medleaf/pharmacy-backend/internal/api/routes"
	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/postgres"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/redis"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/notifications"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
	"github.com/medleaf/pharmacy-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))
	logger := observability.GetLogger()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Initialize Redis client. The service degrades without it: no analytics
	// caches, no event bus, every read computed from the database.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, running without cache and event bus")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		logger.Info().Msg("Redis cache and event bus initialized")
	}

	// Initialize adapters
	prescriptionAdapter := database.NewPrescriptionAdapter(pgClient)
	workloadAdapter := database.NewWorkloadAdapter(pgClient)
	activityAdapter := database.NewActivityAdapter(pgClient)
	userAdapter := database.NewUserAdapter(pgClient)
	txManager := database.NewTxManager(pgClient)

	// External collaborators
	fileStorage, err := storage.NewLocalFileStorage(
		getEnvDefault("STORAGE_DIR", "./uploads"),
		getEnvDefault("STORAGE_BASE_URL", "http://localhost:8080/uploads"),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize file storage")
	}

	var orderProvider providers.OrderProvider
	if orderURL := os.Getenv("ORDER_SERVICE_URL"); orderURL != "" {
		orderProvider, err = orders.NewHTTPOrderGateway(orderURL, os.Getenv("ORDER_SERVICE_TOKEN"))
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize order gateway, approvals will not create orders")
		}
	} else {
		logger.Warn().Msg("ORDER_SERVICE_URL not set, approvals will not create orders")
	}

	var notificationService *services.NotificationService
	sender, err := notifications.NewGatewaySender(cfg.Notifications)
	if err != nil {
		logger.Warn().Err(err).Msg("Notification gateway not configured, customers will not be notified")
	} else {
		sqlxDB := sqlx.NewDb(pgClient.DB(), "postgres")
		notificationService = services.NewNotificationService(sqlxDB, sender)
	}

	// Initialize services
	analyticsService := services.NewAnalyticsService(
		prescriptionAdapter,
		workloadAdapter,
		cacheProvider,
		metrics,
		cfg.Verification,
	)

	// Transitions made by peer instances invalidate our cached aggregates
	if eventBus != nil {
		go func() {
			if err := services.RunInvalidationListener(ctx, eventBus, analyticsService); err != nil && err != context.Canceled {
				logger.Warn().Err(err).Msg("Cache invalidation listener stopped")
			}
		}()
	}

	var notifier services.CustomerNotifier
	if notificationService != nil {
		notifier = notificationService
	}

	verificationService := services.NewVerificationService(
		prescriptionAdapter,
		workloadAdapter,
		activityAdapter,
		userAdapter,
		txManager,
		orderProvider,
		notifier,
		eventBus,
		analyticsService,
		metrics,
		cfg.Verification.MinJustificationLength,
	)

	assignmentService := services.NewAssignmentService(
		prescriptionAdapter,
		workloadAdapter,
		verificationService,
		metrics,
	)

	workloadService := services.NewWorkloadService(
		workloadAdapter,
		prescriptionAdapter,
		userAdapter,
		txManager,
		eventBus,
		analyticsService,
		cfg.Verification.DefaultMaxDailyCapacity,
	)

	uploadPolicy := services.NewUploadPolicy(prescriptionAdapter, cfg.Verification)
	prescriptionService := services.NewPrescriptionService(
		prescriptionAdapter,
		activityAdapter,
		txManager,
		uploadPolicy,
		fileStorage,
		analyticsService,
	)

	// Initialize handlers
	prescriptionHandler := handlers.NewPrescriptionHandler(prescriptionService, verificationService)
	verificationHandler := handlers.NewVerificationHandler(verificationService, assignmentService)
	workloadHandler := handlers.NewWorkloadHandler(workloadService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)

	// Initialize cache middleware
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	// Role-based capability checks against the gateway-forwarded identity
	authMiddleware := middleware.NewAuthorization(userAdapter, services.NewRoleAuthorizer())

	// Warm the dashboard caches so the first reads are fast
	if cacheProvider != nil {
		go func() {
			if err := analyticsService.WarmCaches(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to warm analytics caches")
			}
		}()
	}

	// Set up router
	router := routes.NewRouter(
		prescriptionHandler,
		verificationHandler,
		workloadHandler,
		analyticsHandler,
		authMiddleware,
		cacheMiddleware,
		metrics,
	)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing event bus")
		}
	}

	logger.Info().Msg("Server stopped")
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
