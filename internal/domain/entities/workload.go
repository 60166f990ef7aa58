package entities

import (
	"time"
)

// MaxActiveQueue caps how many live prescriptions a verifier may hold at once,
// regardless of the daily capacity setting
const MaxActiveQueue = 20

// DefaultMaxDailyCapacity is the daily assignment cap for a freshly provisioned verifier
const DefaultMaxDailyCapacity = 30

// VerifierWorkload tracks a verifier's live queue and lifetime decision counters.
// The count columns are denormalized from prescription rows for cheap reads and can
// drift; reconciliation recomputes them from the source records.
type VerifierWorkload struct {
	VerifierID            string    `json:"verifier_id" db:"verifier_id"`
	PendingCount          int       `json:"pending_count" db:"pending_count"`
	InReviewCount         int       `json:"in_review_count" db:"in_review_count"`
	TotalVerified         int       `json:"total_verified" db:"total_verified"`
	TotalApproved         int       `json:"total_approved" db:"total_approved"`
	TotalRejected         int       `json:"total_rejected" db:"total_rejected"`
	AverageProcessingTime float64   `json:"average_processing_time" db:"average_processing_time"`
	IsAvailable           bool      `json:"is_available" db:"is_available"`
	MaxDailyCapacity      int       `json:"max_daily_capacity" db:"max_daily_capacity"`
	CurrentDailyCount     int       `json:"current_daily_count" db:"current_daily_count"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// NewVerifierWorkload returns a workload row for a freshly provisioned verifier
func NewVerifierWorkload(verifierID string, maxDailyCapacity int) *VerifierWorkload {
	if maxDailyCapacity <= 0 {
		maxDailyCapacity = DefaultMaxDailyCapacity
	}
	return &VerifierWorkload{
		VerifierID:       verifierID,
		IsAvailable:      true,
		MaxDailyCapacity: maxDailyCapacity,
		UpdatedAt:        time.Now(),
	}
}

// ActiveCount is the number of prescriptions currently on the verifier's queue
func (w *VerifierWorkload) ActiveCount() int {
	return w.PendingCount + w.InReviewCount
}

// ApprovalRate returns the lifetime approval percentage, 0 when nothing was verified yet
func (w *VerifierWorkload) ApprovalRate() float64 {
	if w.TotalVerified == 0 {
		return 0
	}
	return float64(w.TotalApproved) / float64(w.TotalVerified) * 100
}

// CanAcceptMore reports whether another prescription may be assigned right now
func (w *VerifierWorkload) CanAcceptMore() bool {
	return w.IsAvailable &&
		w.CurrentDailyCount < w.MaxDailyCapacity &&
		w.ActiveCount() < MaxActiveQueue
}

// CapacityUtilization is today's assignment count relative to the daily cap
func (w *VerifierWorkload) CapacityUtilization() float64 {
	if w.MaxDailyCapacity == 0 {
		return 0
	}
	return float64(w.CurrentDailyCount) / float64(w.MaxDailyCapacity) * 100
}

// WorkloadSnapshot is the read model served to dashboards: the raw counters plus
// the derived fields clients would otherwise recompute
type WorkloadSnapshot struct {
	VerifierWorkload
	ApprovalRate        float64 `json:"approval_rate"`
	ActiveCount         int     `json:"active_count"`
	CanAcceptMore       bool    `json:"can_accept_more"`
	CapacityUtilization float64 `json:"capacity_utilization"`
}

// Snapshot materializes the derived fields for serving
func (w *VerifierWorkload) Snapshot() *WorkloadSnapshot {
	return &WorkloadSnapshot{
		VerifierWorkload:    *w,
		ApprovalRate:        w.ApprovalRate(),
		ActiveCount:         w.ActiveCount(),
		CanAcceptMore:       w.CanAcceptMore(),
		CapacityUtilization: w.CapacityUtilization(),
	}
}
