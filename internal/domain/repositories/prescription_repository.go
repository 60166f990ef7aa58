package repositories

import (
	"context"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// PrescriptionRepository defines the interface for prescription record operations
type PrescriptionRepository interface {
	// Create persists a new prescription record
	Create(ctx context.Context, record *entities.PrescriptionRecord) error

	// GetByID retrieves a prescription record by ID
	GetByID(ctx context.Context, id string) (*entities.PrescriptionRecord, error)

	// GetByIDForUpdate retrieves a prescription record under a row-level lock.
	// Requires an ambient transaction; status transitions read through this so
	// concurrent transitions against the same record serialize.
	GetByIDForUpdate(ctx context.Context, id string) (*entities.PrescriptionRecord, error)

	// Update persists changes to a prescription record. Honors an ambient
	// transaction started through Transactor.
	Update(ctx context.Context, record *entities.PrescriptionRecord) error

	// List retrieves prescription records matching the filter
	List(ctx context.Context, filter PrescriptionFilter) ([]*entities.PrescriptionRecord, error)

	// CountByStatus returns record counts grouped by verification status
	CountByStatus(ctx context.Context) (map[entities.VerificationStatus]int, error)

	// CountUrgentOpen counts urgent records that have not reached a decision
	CountUrgentOpen(ctx context.Context) (int, error)

	// CountOverdue counts records older than the threshold still awaiting a decision
	CountOverdue(ctx context.Context, threshold time.Duration) (int, error)

	// CountUnassigned counts pending records with no verifier
	CountUnassigned(ctx context.Context) (int, error)

	// CountByCustomerSince counts a customer's uploads since the given time,
	// used to enforce the daily upload cap
	CountByCustomerSince(ctx context.Context, customerID string, since time.Time) (int, error)

	// CountAssignedByStatus returns, for one verifier, assigned-record counts per
	// status. This is the source of truth the workload counters reconcile against.
	CountAssignedByStatus(ctx context.Context, verifierID string) (map[entities.VerificationStatus]int, error)

	// CountAssignedSince counts records assigned to the verifier at or after the
	// given time, used to rebuild the daily counter
	CountAssignedSince(ctx context.Context, verifierID string, since time.Time) (int, error)

	// DecisionStats aggregates a verifier's lifetime decision totals and average
	// processing time from decided records
	DecisionStats(ctx context.Context, verifierID string) (*DecisionStats, error)

	// CountDecidedSince counts a verifier's decisions at or after the given time
	CountDecidedSince(ctx context.Context, verifierID string, since time.Time) (int, error)

	// DecisionHourHistogram buckets a verifier's decisions since the given time
	// by hour of day
	DecisionHourHistogram(ctx context.Context, verifierID string, since time.Time) ([24]int, error)
}

// PrescriptionFilter defines filters for listing prescription records
type PrescriptionFilter struct {
	Status           entities.VerificationStatus
	CustomerID       string
	AssignedVerifier string
	IsUrgent         *bool
	UnassignedOnly   bool
	Limit            int
	Offset           int
}

// DecisionStats holds aggregates recomputed from decided prescription rows
type DecisionStats struct {
	TotalVerified         int
	TotalApproved         int
	TotalRejected         int
	AverageProcessingTime float64 // minutes
}
