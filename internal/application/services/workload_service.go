package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// ProvisionRequest carries the fields for a new verifier account
type ProvisionRequest struct {
	Email            string
	FullName         string
	Phone            string
	MaxDailyCapacity int
}

// WorkloadService serves workload snapshots, manages availability and repairs
// counter drift. The denormalized counters on the workload row are fast to read
// but only the prescription rows are authoritative; Reconcile recomputes the
// counters from them.
type WorkloadService struct {
	workloadRepo     repositories.WorkloadRepository
	prescriptionRepo repositories.PrescriptionRepository
	userRepo         repositories.UserRepository
	tx               repositories.Transactor
	eventBus         providers.EventBus
	invalidator      CacheInvalidator
	defaultCapacity  int
}

// NewWorkloadService creates a new workload service
func NewWorkloadService(
	workloadRepo repositories.WorkloadRepository,
	prescriptionRepo repositories.PrescriptionRepository,
	userRepo repositories.UserRepository,
	tx repositories.Transactor,
	eventBus providers.EventBus,
	invalidator CacheInvalidator,
	defaultCapacity int,
) *WorkloadService {
	return &WorkloadService{
		workloadRepo:     workloadRepo,
		prescriptionRepo: prescriptionRepo,
		userRepo:         userRepo,
		tx:               tx,
		eventBus:         eventBus,
		invalidator:      invalidator,
		defaultCapacity:  defaultCapacity,
	}
}

// GetSnapshot returns the workload row with derived fields materialized
func (s *WorkloadService) GetSnapshot(ctx context.Context, verifierID string) (*entities.WorkloadSnapshot, error) {
	workload, err := s.workloadRepo.GetByVerifier(ctx, verifierID)
	if err != nil {
		return nil, err
	}
	return workload.Snapshot(), nil
}

// ListSnapshots returns snapshots for every verifier
func (s *WorkloadService) ListSnapshots(ctx context.Context) ([]*entities.WorkloadSnapshot, error) {
	workloads, err := s.workloadRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshots := make([]*entities.WorkloadSnapshot, 0, len(workloads))
	for _, w := range workloads {
		snapshots = append(snapshots, w.Snapshot())
	}
	return snapshots, nil
}

// SetAvailability flips the verifier's availability flag. An unavailable
// verifier keeps their current queue but receives no new assignments.
func (s *WorkloadService) SetAvailability(ctx context.Context, verifierID string, available bool) error {
	if err := s.workloadRepo.SetAvailability(ctx, verifierID, available); err != nil {
		return err
	}

	if s.eventBus != nil {
		event := entities.NewVerificationEvent("", verifierID, entities.VerificationEventTypeAvailabilityChanged, map[string]interface{}{
			"is_available": available,
		})
		if err := s.eventBus.Publish(ctx, providers.EventChannelVerificationUpdates, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to publish availability event")
		}
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateVerifier(ctx, verifierID)
	}
	return nil
}

// ProvisionVerifier creates the verifier identity and its workload row in one
// transaction
func (s *WorkloadService) ProvisionVerifier(ctx context.Context, req *ProvisionRequest) (*entities.User, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, apperrors.NewValidationError("email is required")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, apperrors.NewValidationError("full_name is required")
	}

	capacity := req.MaxDailyCapacity
	if capacity <= 0 {
		capacity = s.defaultCapacity
	}

	user := &entities.User{
		ID:        uuid.New().String(),
		Email:     req.Email,
		FullName:  req.FullName,
		Phone:     req.Phone,
		Role:      entities.RoleVerifier,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return err
		}
		return s.workloadRepo.Create(ctx, entities.NewVerifierWorkload(user.ID, capacity))
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("verifier_id", user.ID).
		Int("max_daily_capacity", capacity).
		Msg("Verifier provisioned")

	return user, nil
}

// Reconcile recomputes the verifier's counters from prescription rows and
// overwrites the workload row. Runs with the row locked so in-flight assignments
// against the same verifier wait for the corrected values.
func (s *WorkloadService) Reconcile(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error) {
	var workload *entities.VerifierWorkload
	var drifted bool

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		workload, err = s.workloadRepo.GetByVerifierForUpdate(ctx, verifierID)
		if err != nil {
			return err
		}

		byStatus, err := s.prescriptionRepo.CountAssignedByStatus(ctx, verifierID)
		if err != nil {
			return err
		}
		daily, err := s.prescriptionRepo.CountAssignedSince(ctx, verifierID, startOfDay(time.Now()))
		if err != nil {
			return err
		}
		stats, err := s.prescriptionRepo.DecisionStats(ctx, verifierID)
		if err != nil {
			return err
		}

		computed := *workload
		computed.PendingCount = byStatus[entities.VerificationStatusClarificationNeeded]
		computed.InReviewCount = byStatus[entities.VerificationStatusInReview]
		computed.CurrentDailyCount = daily
		computed.TotalVerified = stats.TotalVerified
		computed.TotalApproved = stats.TotalApproved
		computed.TotalRejected = stats.TotalRejected
		computed.AverageProcessingTime = stats.AverageProcessingTime

		drifted = computed.PendingCount != workload.PendingCount ||
			computed.InReviewCount != workload.InReviewCount ||
			computed.CurrentDailyCount != workload.CurrentDailyCount ||
			computed.TotalVerified != workload.TotalVerified

		workload = &computed
		return s.workloadRepo.Replace(ctx, workload)
	})
	if err != nil {
		return nil, err
	}

	if drifted {
		observability.LoggerFromContext(ctx).Warn().
			Str("verifier_id", verifierID).
			Int("pending", workload.PendingCount).
			Int("in_review", workload.InReviewCount).
			Int("daily", workload.CurrentDailyCount).
			Msg("Workload counters drifted, reconciled from prescription rows")
	}

	if s.eventBus != nil {
		event := entities.NewVerificationEvent("", verifierID, entities.VerificationEventTypeWorkloadReconciled, nil)
		if err := s.eventBus.Publish(ctx, providers.EventChannelVerificationUpdates, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to publish reconcile event")
		}
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateVerifier(ctx, verifierID)
	}

	return workload, nil
}

// ReconcileAll reconciles every workload row, continuing past per-verifier
// failures. Returns how many rows were reconciled.
func (s *WorkloadService) ReconcileAll(ctx context.Context) (int, error) {
	workloads, err := s.workloadRepo.List(ctx)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, w := range workloads {
		if _, err := s.Reconcile(ctx, w.VerifierID); err != nil {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("verifier_id", w.VerifierID).
				Msg("Failed to reconcile workload")
			continue
		}
		reconciled++
	}
	return reconciled, nil
}

// ResetDailyCounts zeroes every verifier's daily assignment counter, run by the
// background worker after midnight
func (s *WorkloadService) ResetDailyCounts(ctx context.Context) error {
	if err := s.workloadRepo.ResetDailyCounts(ctx); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateVerifier(ctx, "")
	}
	return nil
}
