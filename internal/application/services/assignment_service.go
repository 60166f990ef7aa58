package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// Bulk assignment strategies
const (
	StrategyBalanced   = "balanced"
	StrategyRoundRobin = "round_robin"
)

// AssignedItem reports one successful assignment in a bulk run
type AssignedItem struct {
	PrescriptionID string `json:"prescription_id"`
	VerifierID     string `json:"verifier_id"`
}

// FailedItem reports one prescription a bulk run could not place
type FailedItem struct {
	PrescriptionID string `json:"prescription_id"`
	Reason         string `json:"reason"`
}

// BulkAssignResult is the outcome of a bulk assignment. The call succeeds even
// when every item failed; per-item problems never abort the batch.
type BulkAssignResult struct {
	Assigned []AssignedItem `json:"assigned"`
	Failed   []FailedItem   `json:"failed"`
}

// AssignmentService distributes batches of prescriptions across verifiers.
// Placement is greedy and online: every assignment goes through the same locked
// single-assign path, and the in-memory eligibility view is updated after each
// success so later items in the batch see the new load.
type AssignmentService struct {
	prescriptionRepo repositories.PrescriptionRepository
	workloadRepo     repositories.WorkloadRepository
	verification     *VerificationService
	metrics          *observability.Metrics
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(
	prescriptionRepo repositories.PrescriptionRepository,
	workloadRepo repositories.WorkloadRepository,
	verification *VerificationService,
	metrics *observability.Metrics,
) *AssignmentService {
	return &AssignmentService{
		prescriptionRepo: prescriptionRepo,
		workloadRepo:     workloadRepo,
		verification:     verification,
		metrics:          metrics,
	}
}

// BulkAssign places the given prescriptions on available verifiers. Urgent
// records are placed first, then oldest uploads. Strategy is "balanced"
// (least-loaded verifier, ties broken by ascending verifier ID) or
// "round_robin" (cycle through verifiers, skipping full ones).
func (s *AssignmentService) BulkAssign(ctx context.Context, prescriptionIDs []string, strategy string) (*BulkAssignResult, error) {
	if strategy == "" {
		strategy = StrategyBalanced
	}
	if strategy != StrategyBalanced && strategy != StrategyRoundRobin {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown assignment strategy %q", strategy))
	}
	if len(prescriptionIDs) == 0 {
		return nil, apperrors.NewValidationError("no prescription ids given")
	}

	result := &BulkAssignResult{
		Assigned: []AssignedItem{},
		Failed:   []FailedItem{},
	}

	// Load and order the batch: urgent first, then oldest upload
	var records []*entities.PrescriptionRecord
	for _, id := range prescriptionIDs {
		record, err := s.prescriptionRepo.GetByID(ctx, id)
		if err != nil {
			result.Failed = append(result.Failed, FailedItem{PrescriptionID: id, Reason: failureReason(err)})
			continue
		}
		if !record.Status.CanBeAssigned() {
			result.Failed = append(result.Failed, FailedItem{
				PrescriptionID: id,
				Reason:         fmt.Sprintf("prescription in status %s cannot be assigned", record.Status),
			})
			continue
		}
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].IsUrgent != records[j].IsUrgent {
			return records[i].IsUrgent
		}
		return records[i].UploadedAt.Before(records[j].UploadedAt)
	})

	// Eligibility view, ordered by verifier ID for deterministic ties and a
	// stable round-robin cycle
	workloads, err := s.workloadRepo.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	var view []*entities.VerifierWorkload
	for _, w := range workloads {
		if w.CanAcceptMore() {
			view = append(view, w)
		}
	}
	sort.Slice(view, func(i, j int) bool { return view[i].VerifierID < view[j].VerifierID })

	cursor := 0
	// Verifiers the locked capacity check refused; the view was stale for them
	exhausted := make(map[string]struct{})
	for _, record := range records {
		verifierID, nextCursor, ok := s.place(ctx, record, view, strategy, cursor, exhausted)
		if !ok {
			result.Failed = append(result.Failed, FailedItem{
				PrescriptionID: record.ID,
				Reason:         "no eligible verifier",
			})
			continue
		}
		cursor = nextCursor
		result.Assigned = append(result.Assigned, AssignedItem{
			PrescriptionID: record.ID,
			VerifierID:     verifierID,
		})
		if s.metrics != nil {
			observability.RecordAssignment(ctx, s.metrics, strategy)
		}
	}

	observability.LoggerFromContext(ctx).Info().
		Str("strategy", strategy).
		Int("assigned", len(result.Assigned)).
		Int("failed", len(result.Failed)).
		Msg("Bulk assignment completed")

	return result, nil
}

// place tries candidates in strategy order until one accepts the record,
// updating the in-memory view on success. Returns the chosen verifier and the
// advanced round-robin cursor.
func (s *AssignmentService) place(ctx context.Context, record *entities.PrescriptionRecord, view []*entities.VerifierWorkload, strategy string, cursor int, exhausted map[string]struct{}) (string, int, bool) {
	candidates := s.candidateOrder(view, strategy, cursor)

	// A clarification hold can only be resumed by the verifier already holding
	// it, so the only candidate worth trying is the holder
	holder := ""
	if record.Status == entities.VerificationStatusClarificationNeeded && record.AssignedVerifier != nil {
		holder = *record.AssignedVerifier
	}

	for _, idx := range candidates {
		candidate := view[idx]
		if holder != "" && candidate.VerifierID != holder {
			continue
		}
		if _, full := exhausted[candidate.VerifierID]; full {
			continue
		}
		if !candidate.CanAcceptMore() {
			continue
		}
		if candidate.VerifierID == record.CustomerID {
			continue
		}

		wasClarification := record.Status == entities.VerificationStatusClarificationNeeded

		if _, err := s.verification.Assign(ctx, record.ID, candidate.VerifierID); err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeCapacityExceeded) {
				// The view was stale for this verifier; stop offering them work
				exhausted[candidate.VerifierID] = struct{}{}
				continue
			}
			if apperrors.IsType(err, apperrors.ErrorTypeConflictOfInterest) {
				continue
			}
			// Record-level problem: no other candidate can help
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("prescription_id", record.ID).
				Str("verifier_id", candidate.VerifierID).
				Msg("Bulk assignment item failed")
			return "", cursor, false
		}

		if wasClarification {
			candidate.PendingCount--
			candidate.InReviewCount++
		} else {
			candidate.InReviewCount++
			candidate.CurrentDailyCount++
		}

		// Resuming a hold is not a rotation pick, so the cursor stays put
		if strategy == StrategyRoundRobin && holder == "" {
			cursor = (idx + 1) % len(view)
		}
		return candidate.VerifierID, cursor, true
	}

	return "", cursor, false
}

// candidateOrder returns view indices in the order the strategy would try them
func (s *AssignmentService) candidateOrder(view []*entities.VerifierWorkload, strategy string, cursor int) []int {
	indices := make([]int, len(view))
	for i := range view {
		indices[i] = i
	}

	switch strategy {
	case StrategyRoundRobin:
		if len(view) > 0 {
			rotated := make([]int, 0, len(view))
			for i := 0; i < len(view); i++ {
				rotated = append(rotated, (cursor+i)%len(view))
			}
			return rotated
		}
	default: // balanced
		sort.SliceStable(indices, func(a, b int) bool {
			wa, wb := view[indices[a]], view[indices[b]]
			if wa.ActiveCount() != wb.ActiveCount() {
				return wa.ActiveCount() < wb.ActiveCount()
			}
			return wa.VerifierID < wb.VerifierID
		})
	}
	return indices
}

// failureReason extracts a short reason string from an error for the batch report
func failureReason(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}
