package entities

import (
	"time"
)

// VerificationStatus represents the verification state of a prescription
type VerificationStatus string

const (
	VerificationStatusPending             VerificationStatus = "pending"
	VerificationStatusInReview            VerificationStatus = "in_review"
	VerificationStatusApproved            VerificationStatus = "approved"
	VerificationStatusRejected            VerificationStatus = "rejected"
	VerificationStatusClarificationNeeded VerificationStatus = "clarification_needed"
)

// IsTerminal reports whether no further transition is legal out of the status
func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationStatusApproved || s == VerificationStatusRejected
}

// CanBeAssigned reports whether a prescription in this status may be handed to a verifier
func (s VerificationStatus) CanBeAssigned() bool {
	return s == VerificationStatusPending || s == VerificationStatusClarificationNeeded
}

// IsValid reports whether the status is a known verification status
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationStatusPending, VerificationStatusInReview, VerificationStatusApproved,
		VerificationStatusRejected, VerificationStatusClarificationNeeded:
		return true
	}
	return false
}

// Priority levels for prescription processing. Higher is more urgent.
const (
	PriorityLow      = 1
	PriorityNormal   = 2
	PriorityHigh     = 3
	PriorityCritical = 4
)

// OverdueThreshold is how long a prescription may sit unverified before it counts as overdue
const OverdueThreshold = 24 * time.Hour

// PrescriptionRecord represents an uploaded prescription moving through verification
type PrescriptionRecord struct {
	ID                     string             `json:"id" db:"id"`
	CustomerID             string             `json:"customer_id" db:"customer_id"`
	Status                 VerificationStatus `json:"verification_status" db:"verification_status"`
	PriorityLevel          int                `json:"priority_level" db:"priority_level"`
	IsUrgent               bool               `json:"is_urgent" db:"is_urgent"`
	AssignedVerifier       *string            `json:"assigned_verifier,omitempty" db:"assigned_verifier"`
	ImageURL               string             `json:"image_url" db:"image_url"`
	MedicationHints        string             `json:"medication_hints,omitempty" db:"medication_hints"`
	UploadedAt             time.Time          `json:"uploaded_at" db:"uploaded_at"`
	AssignedAt             *time.Time         `json:"assigned_at,omitempty" db:"assigned_at"`
	VerificationDate       *time.Time         `json:"verification_date,omitempty" db:"verification_date"`
	VerificationNotes      string             `json:"verification_notes,omitempty" db:"verification_notes"`
	ClarificationRequested string             `json:"clarification_requested,omitempty" db:"clarification_requested"`
	CustomerResponse       string             `json:"customer_response,omitempty" db:"customer_response"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
}

// IsOverdue reports whether the prescription has waited past the overdue threshold
// without reaching a decision
func (p *PrescriptionRecord) IsOverdue(now time.Time) bool {
	if p.Status != VerificationStatusPending && p.Status != VerificationStatusInReview {
		return false
	}
	return now.Sub(p.UploadedAt) > OverdueThreshold
}

// ProcessingTime returns the time between upload and decision, zero if undecided
func (p *PrescriptionRecord) ProcessingTime() time.Duration {
	if p.VerificationDate == nil {
		return 0
	}
	return p.VerificationDate.Sub(p.UploadedAt)
}
