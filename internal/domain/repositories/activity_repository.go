package repositories

import (
	"context"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// VerificationActivityRepository defines the interface for the append-only audit trail
type VerificationActivityRepository interface {
	// Append writes a new activity row. There is intentionally no update or delete.
	Append(ctx context.Context, activity *entities.VerificationActivity) error

	// ListByPrescription retrieves the audit trail for a prescription, newest first
	ListByPrescription(ctx context.Context, prescriptionID string, limit int) ([]*entities.VerificationActivity, error)
}
