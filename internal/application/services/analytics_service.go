package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
	"github.com/medleaf/pharmacy-backend/pkg/config"
)

// Cache keys for the analytics aggregates. Verifier stats carry the verifier ID
// as a suffix so a single verifier can be invalidated without touching the rest.
const (
	cacheKeyDashboard           = "verification:dashboard"
	cacheKeySystemHealth        = "verification:health"
	cacheKeyVerifierStatsPrefix = "verification:stats:"
)

func verifierStatsKey(verifierID string) string {
	return cacheKeyVerifierStatsPrefix + verifierID
}

// AnalyticsService serves the dashboard, system health and per-verifier stats.
// Aggregates are cached with short TTLs; a nil cache provider degrades to
// computing every read from the database.
type AnalyticsService struct {
	prescriptionRepo repositories.PrescriptionRepository
	workloadRepo     repositories.WorkloadRepository
	cache            providers.CacheProvider
	metrics          *observability.Metrics
	statsTTL         int
	dashboardTTL     int
	healthTTL        int
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	prescriptionRepo repositories.PrescriptionRepository,
	workloadRepo repositories.WorkloadRepository,
	cache providers.CacheProvider,
	metrics *observability.Metrics,
	cfg config.VerificationConfig,
) *AnalyticsService {
	return &AnalyticsService{
		prescriptionRepo: prescriptionRepo,
		workloadRepo:     workloadRepo,
		cache:            cache,
		metrics:          metrics,
		statsTTL:         cfg.StatsCacheTTLSeconds,
		dashboardTTL:     cfg.DashboardCacheTTL,
		healthTTL:        cfg.HealthCacheTTLSeconds,
	}
}

// GetDashboard returns the status breakdown for the verification dashboard
func (s *AnalyticsService) GetDashboard(ctx context.Context) (*entities.DashboardCounts, error) {
	counts := &entities.DashboardCounts{}
	if s.cacheGet(ctx, cacheKeyDashboard, counts) {
		return counts, nil
	}

	byStatus, err := s.prescriptionRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	urgent, err := s.prescriptionRepo.CountUrgentOpen(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.prescriptionRepo.CountOverdue(ctx, entities.OverdueThreshold)
	if err != nil {
		return nil, err
	}
	unassigned, err := s.prescriptionRepo.CountUnassigned(ctx)
	if err != nil {
		return nil, err
	}

	counts = &entities.DashboardCounts{
		Pending:             byStatus[entities.VerificationStatusPending],
		InReview:            byStatus[entities.VerificationStatusInReview],
		Approved:            byStatus[entities.VerificationStatusApproved],
		Rejected:            byStatus[entities.VerificationStatusRejected],
		ClarificationNeeded: byStatus[entities.VerificationStatusClarificationNeeded],
		Urgent:              urgent,
		Overdue:             overdue,
		Unassigned:          unassigned,
		ComputedAt:          time.Now(),
	}
	for _, n := range byStatus {
		counts.Total += n
	}

	s.cacheSet(ctx, cacheKeyDashboard, counts, s.dashboardTTL)
	return counts, nil
}

// GetSystemHealth scores the verification pipeline and attaches recommendations
func (s *AnalyticsService) GetSystemHealth(ctx context.Context) (*entities.SystemHealth, error) {
	health := &entities.SystemHealth{}
	if s.cacheGet(ctx, cacheKeySystemHealth, health) {
		return health, nil
	}

	byStatus, err := s.prescriptionRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.prescriptionRepo.CountOverdue(ctx, entities.OverdueThreshold)
	if err != nil {
		return nil, err
	}
	available, err := s.workloadRepo.CountAvailable(ctx)
	if err != nil {
		return nil, err
	}

	pending := byStatus[entities.VerificationStatusPending]
	score, status := entities.ComputeHealthScore(pending, overdue, available)

	health = &entities.SystemHealth{
		Score:              score,
		Status:             status,
		PendingCount:       pending,
		OverdueCount:       overdue,
		AvailableVerifiers: available,
		Recommendations:    healthRecommendations(pending, overdue, available),
		ComputedAt:         time.Now(),
	}

	s.cacheSet(ctx, cacheKeySystemHealth, health, s.healthTTL)
	return health, nil
}

func healthRecommendations(pending, overdue, available int) []string {
	var recs []string
	if pending > 25 {
		recs = append(recs, fmt.Sprintf("backlog of %d pending prescriptions, run a bulk assignment", pending))
	}
	if overdue > 5 {
		recs = append(recs, fmt.Sprintf("%d prescriptions past the %s threshold, escalate to available verifiers", overdue, entities.OverdueThreshold))
	}
	if available == 0 {
		recs = append(recs, "no verifiers available, bring verifiers online")
	} else if available < 2 {
		recs = append(recs, "only one verifier available, availability is a single point of failure")
	}
	return recs
}

// GetVerifierStats returns the enhanced per-verifier view: recent throughput,
// the 30-day peak-hour histogram and a 7-day capacity forecast
func (s *AnalyticsService) GetVerifierStats(ctx context.Context, verifierID string) (*entities.VerifierStats, error) {
	stats := &entities.VerifierStats{}
	if s.cacheGet(ctx, verifierStatsKey(verifierID), stats) {
		return stats, nil
	}

	workload, err := s.workloadRepo.GetByVerifier(ctx, verifierID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	midnight := startOfDay(now)
	weekStart := midnight.AddDate(0, 0, -int(now.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	today, err := s.prescriptionRepo.CountDecidedSince(ctx, verifierID, midnight)
	if err != nil {
		return nil, err
	}
	thisWeek, err := s.prescriptionRepo.CountDecidedSince(ctx, verifierID, weekStart)
	if err != nil {
		return nil, err
	}
	thisMonth, err := s.prescriptionRepo.CountDecidedSince(ctx, verifierID, monthStart)
	if err != nil {
		return nil, err
	}
	last7d, err := s.prescriptionRepo.CountDecidedSince(ctx, verifierID, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	peakHours, err := s.prescriptionRepo.DecisionHourHistogram(ctx, verifierID, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	avgDaily7d := float64(last7d) / 7
	forecast := 0.0
	if workload.MaxDailyCapacity > 0 {
		forecast = avgDaily7d / float64(workload.MaxDailyCapacity) * 100
	}

	stats = &entities.VerifierStats{
		VerifierID:            verifierID,
		VerifiedToday:         today,
		VerifiedThisWeek:      thisWeek,
		VerifiedThisMonth:     thisMonth,
		PeakHours:             peakHours,
		AvgDailyVerified7d:    avgDaily7d,
		ForecastUtilization7d: forecast,
		ApprovalRate:          workload.ApprovalRate(),
		AverageProcessingTime: workload.AverageProcessingTime,
		ComputedAt:            time.Now(),
	}

	s.cacheSet(ctx, verifierStatsKey(verifierID), stats, s.statsTTL)
	return stats, nil
}

// InvalidateVerifier drops the cached aggregates touched by a mutation against
// the given verifier. The dashboard and health keys always go with it since every
// transition changes the status breakdown.
func (s *AnalyticsService) InvalidateVerifier(ctx context.Context, verifierID string) {
	if s.cache == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)
	keys := []string{cacheKeyDashboard, cacheKeySystemHealth}
	if verifierID != "" {
		keys = append(keys, verifierStatsKey(verifierID))
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to invalidate cache key")
		}
	}
	// Cached HTTP responses for the dashboard routes would otherwise keep
	// serving the pre-mutation payload until their TTL runs out
	if err := s.cache.DeletePattern(ctx, providers.HTTPResponseCachePrefix+"*"); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate cached responses")
	}
}

// WarmCaches precomputes the dashboard and system health aggregates so the first
// read after a restart or invalidation does not pay the aggregation cost
func (s *AnalyticsService) WarmCaches(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.GetDashboard(ctx); err != nil {
		return err
	}
	if _, err := s.GetSystemHealth(ctx); err != nil {
		return err
	}
	return nil
}

// cacheGet loads a cached aggregate into dest, reporting whether it was found
func (s *AnalyticsService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || data == nil {
		if s.metrics != nil {
			observability.RecordCacheMiss(ctx, s.metrics, key)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to decode cached aggregate")
		return false
	}
	if s.metrics != nil {
		observability.RecordCacheHit(ctx, s.metrics, key)
	}
	return true
}

// cacheSet stores an aggregate, logging instead of failing on cache errors
func (s *AnalyticsService) cacheSet(ctx context.Context, key string, value interface{}, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttlSeconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to cache aggregate")
	}
}
