package providers

import (
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// Action is a capability-checked operation on the verification core
type Action string

const (
	ActionUploadPrescription Action = "prescription.upload"
	ActionAssignPrescription Action = "prescription.assign"
	ActionDecidePrescription Action = "prescription.decide"
	ActionManageAvailability Action = "verifier.manage_availability"
	ActionProvisionVerifier  Action = "verifier.provision"
	ActionViewAnalytics      Action = "analytics.view"
)

// Authorizer answers whether a user may perform an action. Decouples capability
// checks from transport and from ad-hoc role string comparisons.
type Authorizer interface {
	Can(user *entities.User, action Action) bool
}
