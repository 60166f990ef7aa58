package repositories

import (
	"context"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// WorkloadRepository defines the interface for verifier workload operations
type WorkloadRepository interface {
	// Create persists a workload row for a newly provisioned verifier
	Create(ctx context.Context, workload *entities.VerifierWorkload) error

	// GetByVerifier retrieves the workload row for a verifier
	GetByVerifier(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error)

	// GetByVerifierForUpdate retrieves the workload row under a row-level lock.
	// Must be called inside a transaction started through Transactor; the lock
	// serializes concurrent capacity checks against the same verifier.
	GetByVerifierForUpdate(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error)

	// ApplyDelta applies counter increments atomically in a single statement
	ApplyDelta(ctx context.Context, verifierID string, delta WorkloadDelta) error

	// SetAvailability flips the availability flag
	SetAvailability(ctx context.Context, verifierID string, available bool) error

	// Replace overwrites the counter columns, used by reconciliation write-back
	Replace(ctx context.Context, workload *entities.VerifierWorkload) error

	// List retrieves all workload rows
	List(ctx context.Context) ([]*entities.VerifierWorkload, error)

	// ListAvailable retrieves workload rows of available verifiers
	ListAvailable(ctx context.Context) ([]*entities.VerifierWorkload, error)

	// CountAvailable counts verifiers currently flagged available
	CountAvailable(ctx context.Context) (int, error)

	// ResetDailyCounts zeroes current_daily_count on every row, run after midnight
	ResetDailyCounts(ctx context.Context) error
}

// WorkloadDelta holds signed counter increments applied in one atomic update.
// AverageProcessingTime, when set, replaces the stored running mean.
type WorkloadDelta struct {
	Pending               int
	InReview              int
	Verified              int
	Approved              int
	Rejected              int
	Daily                 int
	AverageProcessingTime *float64
}
