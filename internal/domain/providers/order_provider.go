package providers

import (
	"context"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// OrderProvider defines the interface for the downstream order-creation
// collaborator. The core only signals an approved prescription; fulfillment,
// invoicing and payment are owned elsewhere.
type OrderProvider interface {
	// CreateFromPrescription creates a downstream order for an approved prescription
	CreateFromPrescription(ctx context.Context, prescription *entities.PrescriptionRecord) (orderID string, err error)
}
