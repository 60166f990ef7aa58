package providers

import (
	"context"
)

// NotificationTemplate identifies a customer-facing message template
type NotificationTemplate string

const (
	TemplatePrescriptionApproved      NotificationTemplate = "prescription_approved"
	TemplatePrescriptionRejected      NotificationTemplate = "prescription_rejected"
	TemplateClarificationRequested    NotificationTemplate = "clarification_requested"
)

// NotificationProvider defines the interface for the external notification
// collaborator. Delivery failures are non-fatal to the operation that triggered
// them; callers log and surface a warning instead.
type NotificationProvider interface {
	// Send delivers a templated message to a customer
	Send(ctx context.Context, customerID string, template NotificationTemplate, data map[string]string) error
}
