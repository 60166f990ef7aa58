package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
)

// NotificationService sends customer notifications and keeps a delivery log.
// Delivery failures are recorded and returned, but callers treat them as
// warnings, never as a reason to roll a verification decision back.
type NotificationService struct {
	db     *sqlx.DB
	sender providers.NotificationProvider
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *sqlx.DB, sender providers.NotificationProvider) *NotificationService {
	return &NotificationService{
		db:     db,
		sender: sender,
	}
}

// notificationDelivery is one row of the delivery log
type notificationDelivery struct {
	ID             string     `db:"id"`
	PrescriptionID string     `db:"prescription_id"`
	CustomerID     string     `db:"customer_id"`
	Template       string     `db:"template"`
	Status         string     `db:"status"`
	ErrorMessage   *string    `db:"error_message"`
	SentAt         *time.Time `db:"sent_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

const (
	deliveryStatusPending = "pending"
	deliveryStatusSent    = "sent"
	deliveryStatusFailed  = "failed"
)

// NotifyDecision tells the customer their prescription was approved or rejected
func (n *NotificationService) NotifyDecision(ctx context.Context, record *entities.PrescriptionRecord, notes string) error {
	var template providers.NotificationTemplate
	data := map[string]string{
		"prescription_id": record.ID,
	}
	switch record.Status {
	case entities.VerificationStatusApproved:
		template = providers.TemplatePrescriptionApproved
	case entities.VerificationStatusRejected:
		template = providers.TemplatePrescriptionRejected
		data["reason"] = notes
	default:
		return fmt.Errorf("no decision notification for status %s", record.Status)
	}

	return n.deliver(ctx, record, template, data)
}

// NotifyClarification tells the customer their prescription needs clarification
func (n *NotificationService) NotifyClarification(ctx context.Context, record *entities.PrescriptionRecord, message string) error {
	return n.deliver(ctx, record, providers.TemplateClarificationRequested, map[string]string{
		"prescription_id": record.ID,
		"message":         message,
	})
}

// deliver sends the message and records the attempt in the delivery log
func (n *NotificationService) deliver(ctx context.Context, record *entities.PrescriptionRecord, template providers.NotificationTemplate, data map[string]string) error {
	delivery := &notificationDelivery{
		ID:             uuid.New().String(),
		PrescriptionID: record.ID,
		CustomerID:     record.CustomerID,
		Template:       string(template),
		Status:         deliveryStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := n.createDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}

	sendErr := n.sender.Send(ctx, record.CustomerID, template, data)

	now := time.Now()
	if sendErr != nil {
		errMsg := sendErr.Error()
		delivery.Status = deliveryStatusFailed
		delivery.ErrorMessage = &errMsg
	} else {
		delivery.Status = deliveryStatusSent
		delivery.SentAt = &now
	}
	delivery.UpdatedAt = now

	if err := n.updateDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("failed to update delivery record: %w", err)
	}

	return sendErr
}

// Database operations
func (n *NotificationService) createDelivery(ctx context.Context, delivery *notificationDelivery) error {
	query := `
		INSERT INTO notification_deliveries
		(id, prescription_id, customer_id, template, status, error_message, sent_at, created_at, updated_at)
		VALUES (:id, :prescription_id, :customer_id, :template, :status, :error_message, :sent_at, :created_at, :updated_at)
	`
	_, err := n.db.NamedExecContext(ctx, query, delivery)
	return err
}

func (n *NotificationService) updateDelivery(ctx context.Context, delivery *notificationDelivery) error {
	query := `
		UPDATE notification_deliveries
		SET status = :status, error_message = :error_message, sent_at = :sent_at, updated_at = :updated_at
		WHERE id = :id
	`
	_, err := n.db.NamedExecContext(ctx, query, delivery)
	return err
}
