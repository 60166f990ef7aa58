package entities

import (
	"time"

	"github.com/google/uuid"
)

// VerificationEventType represents the type of verification event
type VerificationEventType string

const (
	VerificationEventTypeAssigned             VerificationEventType = "prescription_assigned"
	VerificationEventTypeReassigned           VerificationEventType = "prescription_reassigned"
	VerificationEventTypeDecisionRecorded     VerificationEventType = "decision_recorded"
	VerificationEventTypeClarificationOpened  VerificationEventType = "clarification_opened"
	VerificationEventTypeAvailabilityChanged  VerificationEventType = "availability_changed"
	VerificationEventTypeWorkloadReconciled   VerificationEventType = "workload_reconciled"
)

// VerificationEvent is published after a mutating verification operation commits,
// so other instances can drop their cached aggregates for the touched verifier
type VerificationEvent struct {
	ID             string                 `json:"id"`
	PrescriptionID string                 `json:"prescription_id,omitempty"`
	VerifierID     string                 `json:"verifier_id,omitempty"`
	EventType      VerificationEventType  `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	ChangedFields  map[string]interface{} `json:"changed_fields,omitempty"`
}

// NewVerificationEvent creates a new verification event
func NewVerificationEvent(prescriptionID, verifierID string, eventType VerificationEventType, changedFields map[string]interface{}) *VerificationEvent {
	return &VerificationEvent{
		ID:             uuid.New().String(),
		PrescriptionID: prescriptionID,
		VerifierID:     verifierID,
		EventType:      eventType,
		Timestamp:      time.Now(),
		ChangedFields:  changedFields,
	}
}
