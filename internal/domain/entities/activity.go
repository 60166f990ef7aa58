package entities

import (
	"time"

	"github.com/google/uuid"
)

// ActivityAction enumerates the auditable verification events
type ActivityAction string

const (
	ActivityActionUploaded               ActivityAction = "uploaded"
	ActivityActionAssigned               ActivityAction = "assigned"
	ActivityActionReassigned             ActivityAction = "reassigned"
	ActivityActionApproved               ActivityAction = "approved"
	ActivityActionRejected               ActivityAction = "rejected"
	ActivityActionClarificationRequested ActivityAction = "clarification_requested"
	ActivityActionCustomerResponded      ActivityAction = "customer_responded"
)

// VerificationActivity is one immutable row of the audit trail. Rows are only ever
// appended, never updated or deleted.
type VerificationActivity struct {
	ID             string         `json:"id" db:"id"`
	PrescriptionID string         `json:"prescription_id" db:"prescription_id"`
	VerifierID     *string        `json:"verifier_id,omitempty" db:"verifier_id"`
	Action         ActivityAction `json:"action" db:"action"`
	Description    string         `json:"description" db:"description"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// NewVerificationActivity creates an audit row for a prescription event
func NewVerificationActivity(prescriptionID string, verifierID *string, action ActivityAction, description string) *VerificationActivity {
	return &VerificationActivity{
		ID:             uuid.New().String(),
		PrescriptionID: prescriptionID,
		VerifierID:     verifierID,
		Action:         action,
		Description:    description,
		CreatedAt:      time.Now(),
	}
}
