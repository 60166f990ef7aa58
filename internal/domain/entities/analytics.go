package entities

import (
	"time"
)

// DashboardCounts is the status breakdown served to the verification dashboard
type DashboardCounts struct {
	Total               int       `json:"total"`
	Pending             int       `json:"pending"`
	InReview            int       `json:"in_review"`
	Approved            int       `json:"approved"`
	Rejected            int       `json:"rejected"`
	ClarificationNeeded int       `json:"clarification_needed"`
	Urgent              int       `json:"urgent"`
	Overdue             int       `json:"overdue"`
	Unassigned          int       `json:"unassigned"`
	ComputedAt          time.Time `json:"computed_at"`
}

// Health status labels by score band
const (
	HealthStatusExcellent = "Excellent"
	HealthStatusGood      = "Good"
	HealthStatusWarning   = "Warning"
	HealthStatusCritical  = "Critical"
)

// SystemHealth is the aggregate health view of the verification pipeline
type SystemHealth struct {
	Score              int       `json:"score"`
	Status             string    `json:"status"`
	PendingCount       int       `json:"pending_count"`
	OverdueCount       int       `json:"overdue_count"`
	AvailableVerifiers int       `json:"available_verifiers"`
	Recommendations    []string  `json:"recommendations"`
	ComputedAt         time.Time `json:"computed_at"`
}

// ComputeHealthScore scores the pipeline from its backlog, overdue volume and
// verifier availability. Starts at 100, deducts per pressure signal, floors at 0.
func ComputeHealthScore(pendingCount, overdueCount, availableVerifiers int) (int, string) {
	score := 100

	switch {
	case pendingCount > 50:
		score -= 20
	case pendingCount > 25:
		score -= 10
	}

	switch {
	case overdueCount > 10:
		score -= 30
	case overdueCount > 5:
		score -= 15
	}

	switch {
	case availableVerifiers == 0:
		score -= 40
	case availableVerifiers < 2:
		score -= 20
	}

	if score < 0 {
		score = 0
	}

	return score, healthStatusLabel(score)
}

func healthStatusLabel(score int) string {
	switch {
	case score >= 95:
		return HealthStatusExcellent
	case score >= 80:
		return HealthStatusGood
	case score >= 60:
		return HealthStatusWarning
	default:
		return HealthStatusCritical
	}
}

// VerifierStats is the enhanced per-verifier view: recent throughput, the 30-day
// peak-hour histogram and a capacity forecast from the trailing 7 days
type VerifierStats struct {
	VerifierID            string    `json:"verifier_id"`
	VerifiedToday         int       `json:"verified_today"`
	VerifiedThisWeek      int       `json:"verified_this_week"`
	VerifiedThisMonth     int       `json:"verified_this_month"`
	PeakHours             [24]int   `json:"peak_hours"`
	AvgDailyVerified7d    float64   `json:"avg_daily_verified_7d"`
	ForecastUtilization7d float64   `json:"forecast_utilization_7d"`
	ApprovalRate          float64   `json:"approval_rate"`
	AverageProcessingTime float64   `json:"average_processing_time"`
	ComputedAt            time.Time `json:"computed_at"`
}
