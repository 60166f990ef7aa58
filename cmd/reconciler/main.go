package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/adapters/cache"
	"github.com/medleaf/pharmacy-backend/internal/adapters/database"
	"github.com/medleaf/pharmacy-backend/internal/adapters/events"
	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/postgres"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/redis"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
	"github.com/medleaf/pharmacy-backend/pkg/config"
)

// The reconciler repairs workload counter drift on an interval, resets daily
// assignment counters after midnight and keeps the dashboard caches warm.
// Every failure is logged and retried on the next tick; the worker never exits
// on a reconciliation error.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-reconciler", os.Getenv("APP_ENV"))
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, running without cache warming")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	prescriptionAdapter := database.NewPrescriptionAdapter(pgClient)
	workloadAdapter := database.NewWorkloadAdapter(pgClient)
	userAdapter := database.NewUserAdapter(pgClient)
	txManager := database.NewTxManager(pgClient)

	analyticsService := services.NewAnalyticsService(
		prescriptionAdapter,
		workloadAdapter,
		cacheProvider,
		nil,
		cfg.Verification,
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

	ticker := time.NewTicker(cfg.Verification.ReconcileInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().
		Dur("interval", cfg.Verification.ReconcileInterval).
		Msg("Reconciler started")

	// Run once at startup so a long interval does not delay the first repair
	lastReset := startOfDay(time.Now())
	runPass(ctx, workloadService, analyticsService)

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if midnight := startOfDay(now); midnight.After(lastReset) {
				if err := workloadService.ResetDailyCounts(ctx); err != nil {
					logger.Error().Err(err).Msg("Failed to reset daily counters")
				} else {
					logger.Info().Msg("Daily assignment counters reset")
					lastReset = midnight
				}
			}
			runPass(ctx, workloadService, analyticsService)
		case <-quit:
			logger.Info().Msg("Reconciler shutting down")
			if eventBus != nil {
				if err := eventBus.Close(); err != nil {
					logger.Error().Err(err).Msg("Error closing event bus")
				}
			}
			return
		}
	}
}

func runPass(ctx context.Context, workloadService *services.WorkloadService, analyticsService *services.AnalyticsService) {
	logger := observability.GetLogger()

	reconciled, err := workloadService.ReconcileAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Reconciliation pass failed")
	} else {
		logger.Info().Int("reconciled", reconciled).Msg("Reconciliation pass completed")
	}

	if err := analyticsService.WarmCaches(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to warm analytics caches")
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
