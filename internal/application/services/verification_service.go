package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// DecisionOutcome is the verdict recorded on an in-review prescription
type DecisionOutcome string

const (
	DecisionOutcomeApproved DecisionOutcome = "approved"
	DecisionOutcomeRejected DecisionOutcome = "rejected"
)

// DecisionResult is returned from Decide. NotificationSent is false when the
// decision committed but the customer notification failed; the decision stands.
type DecisionResult struct {
	Record           *entities.PrescriptionRecord `json:"record"`
	NotificationSent bool                         `json:"notification_sent"`
	OrderID          string                       `json:"order_id,omitempty"`
}

// CacheInvalidator drops cached aggregates after a mutating operation
type CacheInvalidator interface {
	InvalidateVerifier(ctx context.Context, verifierID string)
}

// CustomerNotifier sends customer-facing messages for verification transitions
type CustomerNotifier interface {
	NotifyDecision(ctx context.Context, record *entities.PrescriptionRecord, notes string) error
	NotifyClarification(ctx context.Context, record *entities.PrescriptionRecord, message string) error
}

// VerificationService drives the prescription state machine. Every transition
// runs in one transaction: the prescription row, the verifier's workload counters
// and the audit activity commit or roll back together. The prescription row is
// read under lock so two transitions cannot both observe the old status, and the
// workload row is locked so concurrent capacity checks against one verifier
// serialize.
type VerificationService struct {
	prescriptionRepo repositories.PrescriptionRepository
	workloadRepo     repositories.WorkloadRepository
	activityRepo     repositories.VerificationActivityRepository
	userRepo         repositories.UserRepository
	tx               repositories.Transactor
	orders           providers.OrderProvider
	notifier         CustomerNotifier
	eventBus         providers.EventBus
	invalidator      CacheInvalidator
	metrics          *observability.Metrics
	minJustification int
}

// NewVerificationService creates a new verification service
func NewVerificationService(
	prescriptionRepo repositories.PrescriptionRepository,
	workloadRepo repositories.WorkloadRepository,
	activityRepo repositories.VerificationActivityRepository,
	userRepo repositories.UserRepository,
	tx repositories.Transactor,
	orders providers.OrderProvider,
	notifier CustomerNotifier,
	eventBus providers.EventBus,
	invalidator CacheInvalidator,
	metrics *observability.Metrics,
	minJustificationLength int,
) *VerificationService {
	return &VerificationService{
		prescriptionRepo: prescriptionRepo,
		workloadRepo:     workloadRepo,
		activityRepo:     activityRepo,
		userRepo:         userRepo,
		tx:               tx,
		orders:           orders,
		notifier:         notifier,
		eventBus:         eventBus,
		invalidator:      invalidator,
		metrics:          metrics,
		minJustification: minJustificationLength,
	}
}

// Assign hands a prescription to a verifier: pending or clarification_needed
// moves to in_review. A clarification_needed record can only be resumed by the
// verifier already holding it; moving it elsewhere goes through Reassign.
func (s *VerificationService) Assign(ctx context.Context, prescriptionID, verifierID string) (*entities.PrescriptionRecord, error) {
	var record *entities.PrescriptionRecord

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.prescriptionRepo.GetByIDForUpdate(ctx, prescriptionID)
		if err != nil {
			return err
		}

		if !record.Status.CanBeAssigned() {
			return apperrors.NewConflictError(fmt.Sprintf("prescription in status %s cannot be assigned", record.Status))
		}
		if record.AssignedVerifier != nil && *record.AssignedVerifier != verifierID {
			return apperrors.NewConflictError("prescription is assigned to another verifier, use reassign")
		}

		if err := s.checkVerifier(ctx, record, verifierID); err != nil {
			return err
		}

		workload, err := s.workloadRepo.GetByVerifierForUpdate(ctx, verifierID)
		if err != nil {
			return err
		}
		if !workload.CanAcceptMore() {
			return apperrors.NewCapacityExceededError(fmt.Sprintf("verifier %s cannot accept more prescriptions", verifierID))
		}

		now := time.Now()
		delta := repositories.WorkloadDelta{InReview: 1}
		if record.Status == entities.VerificationStatusClarificationNeeded {
			// Resuming a held record: the unit moves from pending back to
			// in_review, it is not a fresh assignment against today's cap.
			delta.Pending = -1
		} else {
			delta.Daily = 1
			record.AssignedAt = &now
		}

		record.Status = entities.VerificationStatusInReview
		record.AssignedVerifier = &verifierID
		record.UpdatedAt = now

		if err := s.prescriptionRepo.Update(ctx, record); err != nil {
			return err
		}
		if err := s.workloadRepo.ApplyDelta(ctx, verifierID, delta); err != nil {
			return err
		}

		activity := entities.NewVerificationActivity(record.ID, &verifierID, entities.ActivityActionAssigned,
			fmt.Sprintf("assigned to verifier %s", verifierID))
		return s.activityRepo.Append(ctx, activity)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		observability.RecordAssignment(ctx, s.metrics, "direct")
	}
	s.afterMutation(ctx, entities.NewVerificationEvent(record.ID, verifierID, entities.VerificationEventTypeAssigned, map[string]interface{}{
		"verification_status": record.Status,
	}), verifierID)

	return record, nil
}

// Decide records the verdict on an in-review prescription. Rejection requires a
// justification of at least the configured length. The customer notification and
// the downstream order (on approval) run after commit and are best-effort.
func (s *VerificationService) Decide(ctx context.Context, prescriptionID, verifierID string, outcome DecisionOutcome, notes string) (*DecisionResult, error) {
	if outcome != DecisionOutcomeApproved && outcome != DecisionOutcomeRejected {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown decision outcome %q", outcome))
	}
	if outcome == DecisionOutcomeRejected && len(strings.TrimSpace(notes)) < s.minJustification {
		return nil, apperrors.NewMissingJustificationError(
			fmt.Sprintf("rejection requires a justification of at least %d characters", s.minJustification))
	}

	var record *entities.PrescriptionRecord

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.prescriptionRepo.GetByIDForUpdate(ctx, prescriptionID)
		if err != nil {
			return err
		}

		if record.Status.IsTerminal() {
			return apperrors.NewDecisionNotAllowedError(fmt.Sprintf("prescription is already %s", record.Status))
		}
		if record.Status != entities.VerificationStatusInReview {
			return apperrors.NewDecisionNotAllowedError(fmt.Sprintf("cannot decide a prescription in status %s", record.Status))
		}
		if record.AssignedVerifier == nil || *record.AssignedVerifier != verifierID {
			return apperrors.NewUnauthorizedError("only the assigned verifier may decide this prescription")
		}

		workload, err := s.workloadRepo.GetByVerifierForUpdate(ctx, verifierID)
		if err != nil {
			return err
		}

		now := time.Now()
		record.VerificationDate = &now
		record.VerificationNotes = notes
		record.UpdatedAt = now

		delta := repositories.WorkloadDelta{InReview: -1, Verified: 1}
		if outcome == DecisionOutcomeApproved {
			record.Status = entities.VerificationStatusApproved
			delta.Approved = 1
		} else {
			record.Status = entities.VerificationStatusRejected
			delta.Rejected = 1
		}

		// Fold this decision into the running mean, in minutes
		minutes := record.ProcessingTime().Minutes()
		newAvg := (workload.AverageProcessingTime*float64(workload.TotalVerified) + minutes) / float64(workload.TotalVerified+1)
		delta.AverageProcessingTime = &newAvg

		if err := s.prescriptionRepo.Update(ctx, record); err != nil {
			return err
		}
		if err := s.workloadRepo.ApplyDelta(ctx, verifierID, delta); err != nil {
			return err
		}

		action := entities.ActivityActionApproved
		if outcome == DecisionOutcomeRejected {
			action = entities.ActivityActionRejected
		}
		activity := entities.NewVerificationActivity(record.ID, &verifierID, action, notes)
		return s.activityRepo.Append(ctx, activity)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		observability.RecordDecision(ctx, s.metrics, string(outcome))
	}

	result := &DecisionResult{Record: record, NotificationSent: true}
	logger := observability.LoggerFromContext(ctx)

	if s.notifier != nil {
		if err := s.notifier.NotifyDecision(ctx, record, notes); err != nil {
			result.NotificationSent = false
			logger.Warn().Err(err).Str("prescription_id", record.ID).Msg("Failed to notify customer of decision")
		}
	}

	if outcome == DecisionOutcomeApproved && s.orders != nil {
		orderID, err := s.orders.CreateFromPrescription(ctx, record)
		if err != nil {
			logger.Warn().Err(err).Str("prescription_id", record.ID).Msg("Failed to create downstream order")
		} else {
			result.OrderID = orderID
		}
	}

	s.afterMutation(ctx, entities.NewVerificationEvent(record.ID, verifierID, entities.VerificationEventTypeDecisionRecorded, map[string]interface{}{
		"verification_status": record.Status,
	}), verifierID)

	return result, nil
}

// RequestClarification parks an in-review prescription until the customer
// responds. The assignment is retained; the unit moves from the verifier's
// in-review count to their pending count.
func (s *VerificationService) RequestClarification(ctx context.Context, prescriptionID, verifierID, message string) (*entities.PrescriptionRecord, error) {
	if len(strings.TrimSpace(message)) < s.minJustification {
		return nil, apperrors.NewMissingJustificationError(
			fmt.Sprintf("clarification request requires a message of at least %d characters", s.minJustification))
	}

	var record *entities.PrescriptionRecord

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.prescriptionRepo.GetByIDForUpdate(ctx, prescriptionID)
		if err != nil {
			return err
		}

		if record.Status != entities.VerificationStatusInReview {
			return apperrors.NewDecisionNotAllowedError(fmt.Sprintf("cannot request clarification on a prescription in status %s", record.Status))
		}
		if record.AssignedVerifier == nil || *record.AssignedVerifier != verifierID {
			return apperrors.NewUnauthorizedError("only the assigned verifier may request clarification")
		}

		if _, err := s.workloadRepo.GetByVerifierForUpdate(ctx, verifierID); err != nil {
			return err
		}

		record.Status = entities.VerificationStatusClarificationNeeded
		record.ClarificationRequested = message
		record.UpdatedAt = time.Now()

		if err := s.prescriptionRepo.Update(ctx, record); err != nil {
			return err
		}
		if err := s.workloadRepo.ApplyDelta(ctx, verifierID, repositories.WorkloadDelta{InReview: -1, Pending: 1}); err != nil {
			return err
		}

		activity := entities.NewVerificationActivity(record.ID, &verifierID, entities.ActivityActionClarificationRequested, message)
		return s.activityRepo.Append(ctx, activity)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyClarification(ctx, record, message); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("prescription_id", record.ID).Msg("Failed to notify customer of clarification request")
		}
	}

	s.afterMutation(ctx, entities.NewVerificationEvent(record.ID, verifierID, entities.VerificationEventTypeClarificationOpened, map[string]interface{}{
		"verification_status": record.Status,
	}), verifierID)

	return record, nil
}

// Reassign moves an assigned prescription to a different verifier. The record's
// status does not change; the counter unit moves from the old verifier to the
// new one and the new verifier's capacity is checked under lock.
func (s *VerificationService) Reassign(ctx context.Context, prescriptionID, newVerifierID, reason string) (*entities.PrescriptionRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("reassignment requires a reason")
	}

	var record *entities.PrescriptionRecord
	var oldVerifierID string

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.prescriptionRepo.GetByIDForUpdate(ctx, prescriptionID)
		if err != nil {
			return err
		}

		if record.Status.IsTerminal() {
			return apperrors.NewDecisionNotAllowedError(fmt.Sprintf("prescription is already %s", record.Status))
		}
		if record.AssignedVerifier == nil {
			return apperrors.NewConflictError("prescription has no assigned verifier")
		}
		oldVerifierID = *record.AssignedVerifier
		if oldVerifierID == newVerifierID {
			return apperrors.NewConflictError("prescription is already assigned to this verifier")
		}

		if err := s.checkVerifier(ctx, record, newVerifierID); err != nil {
			return err
		}

		// Lock both workload rows in a fixed order so two opposing reassigns
		// cannot deadlock
		first, second := oldVerifierID, newVerifierID
		if second < first {
			first, second = second, first
		}
		if _, err := s.workloadRepo.GetByVerifierForUpdate(ctx, first); err != nil {
			return err
		}
		if _, err := s.workloadRepo.GetByVerifierForUpdate(ctx, second); err != nil {
			return err
		}

		newWorkload, err := s.workloadRepo.GetByVerifier(ctx, newVerifierID)
		if err != nil {
			return err
		}
		if !newWorkload.CanAcceptMore() {
			return apperrors.NewCapacityExceededError(fmt.Sprintf("verifier %s cannot accept more prescriptions", newVerifierID))
		}

		oldDelta := repositories.WorkloadDelta{}
		newDelta := repositories.WorkloadDelta{Daily: 1}
		if record.Status == entities.VerificationStatusClarificationNeeded {
			oldDelta.Pending = -1
			newDelta.Pending = 1
		} else {
			oldDelta.InReview = -1
			newDelta.InReview = 1
		}

		now := time.Now()
		record.AssignedVerifier = &newVerifierID
		record.AssignedAt = &now
		record.UpdatedAt = now

		if err := s.prescriptionRepo.Update(ctx, record); err != nil {
			return err
		}
		if err := s.workloadRepo.ApplyDelta(ctx, oldVerifierID, oldDelta); err != nil {
			return err
		}
		if err := s.workloadRepo.ApplyDelta(ctx, newVerifierID, newDelta); err != nil {
			return err
		}

		activity := entities.NewVerificationActivity(record.ID, &newVerifierID, entities.ActivityActionReassigned,
			fmt.Sprintf("reassigned from %s to %s: %s", oldVerifierID, newVerifierID, reason))
		return s.activityRepo.Append(ctx, activity)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		observability.RecordAssignment(ctx, s.metrics, "reassign")
	}
	s.afterMutation(ctx, entities.NewVerificationEvent(record.ID, newVerifierID, entities.VerificationEventTypeReassigned, map[string]interface{}{
		"previous_verifier": oldVerifierID,
	}), newVerifierID)
	if s.invalidator != nil {
		s.invalidator.InvalidateVerifier(ctx, oldVerifierID)
	}

	return record, nil
}

// RecordCustomerResponse stores the customer's answer to a clarification
// request. The prescription stays in clarification_needed until the holding
// verifier resumes it through Assign.
func (s *VerificationService) RecordCustomerResponse(ctx context.Context, prescriptionID, response string) (*entities.PrescriptionRecord, error) {
	if strings.TrimSpace(response) == "" {
		return nil, apperrors.NewValidationError("response must not be empty")
	}

	var record *entities.PrescriptionRecord

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.prescriptionRepo.GetByIDForUpdate(ctx, prescriptionID)
		if err != nil {
			return err
		}

		if record.Status != entities.VerificationStatusClarificationNeeded {
			return apperrors.NewConflictError(fmt.Sprintf("prescription in status %s is not awaiting clarification", record.Status))
		}

		record.CustomerResponse = response
		record.UpdatedAt = time.Now()

		if err := s.prescriptionRepo.Update(ctx, record); err != nil {
			return err
		}

		activity := entities.NewVerificationActivity(record.ID, record.AssignedVerifier, entities.ActivityActionCustomerResponded, response)
		return s.activityRepo.Append(ctx, activity)
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// checkVerifier validates the target of an assignment: must hold the verifier
// capability and must not be the prescription's own customer
func (s *VerificationService) checkVerifier(ctx context.Context, record *entities.PrescriptionRecord, verifierID string) error {
	user, err := s.userRepo.GetByID(ctx, verifierID)
	if err != nil {
		return err
	}
	if !user.IsVerifier() {
		return apperrors.NewNotAVerifierError(fmt.Sprintf("user %s is not an active verifier", verifierID))
	}
	if record.CustomerID == verifierID {
		return apperrors.NewConflictOfInterestError("verifiers cannot verify their own prescriptions")
	}
	return nil
}

// afterMutation publishes the event and drops cached aggregates, both best-effort
func (s *VerificationService) afterMutation(ctx context.Context, event *entities.VerificationEvent, verifierID string) {
	if s.eventBus != nil {
		if err := s.eventBus.Publish(ctx, providers.EventChannelVerificationUpdates, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("event_type", string(event.EventType)).Msg("Failed to publish verification event")
		}
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateVerifier(ctx, verifierID)
	}
}
