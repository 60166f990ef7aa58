package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// UploadRequest carries a customer's prescription upload
type UploadRequest struct {
	CustomerID      string
	Filename        string
	ContentType     string
	Data            []byte
	MedicationHints string
	IsUrgent        bool
	PriorityLevel   int
}

// PrescriptionService handles prescription intake and reads
type PrescriptionService struct {
	prescriptionRepo repositories.PrescriptionRepository
	activityRepo     repositories.VerificationActivityRepository
	tx               repositories.Transactor
	policy           *UploadPolicy
	fileStorage      providers.FileStorageProvider
	invalidator      CacheInvalidator
}

// NewPrescriptionService creates a new prescription service
func NewPrescriptionService(
	prescriptionRepo repositories.PrescriptionRepository,
	activityRepo repositories.VerificationActivityRepository,
	tx repositories.Transactor,
	policy *UploadPolicy,
	fileStorage providers.FileStorageProvider,
	invalidator CacheInvalidator,
) *PrescriptionService {
	return &PrescriptionService{
		prescriptionRepo: prescriptionRepo,
		activityRepo:     activityRepo,
		tx:               tx,
		policy:           policy,
		fileStorage:      fileStorage,
		invalidator:      invalidator,
	}
}

// Upload validates the upload, stores the image and creates the pending record
func (s *PrescriptionService) Upload(ctx context.Context, req *UploadRequest) (*entities.PrescriptionRecord, error) {
	if req.CustomerID == "" {
		return nil, apperrors.NewValidationError("customer_id is required")
	}
	if err := s.policy.Validate(ctx, req.CustomerID, req.ContentType, req.Data); err != nil {
		return nil, err
	}

	imageURL, err := s.fileStorage.Store(ctx, req.Filename, req.ContentType, req.Data)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to store prescription image", err)
	}

	priority := req.PriorityLevel
	if priority == 0 {
		priority = entities.PriorityNormal
	}
	if req.IsUrgent && priority < entities.PriorityHigh {
		priority = entities.PriorityHigh
	}
	if priority < entities.PriorityLow || priority > entities.PriorityCritical {
		return nil, apperrors.NewValidationError("priority_level out of range")
	}

	now := time.Now()
	record := &entities.PrescriptionRecord{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		Status:          entities.VerificationStatusPending,
		PriorityLevel:   priority,
		IsUrgent:        req.IsUrgent,
		ImageURL:        imageURL,
		MedicationHints: req.MedicationHints,
		UploadedAt:      now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptionRepo.Create(ctx, record); err != nil {
			return err
		}
		activity := entities.NewVerificationActivity(record.ID, nil, entities.ActivityActionUploaded,
			"prescription uploaded by customer")
		return s.activityRepo.Append(ctx, activity)
	})
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateVerifier(ctx, "")
	}

	return record, nil
}

// Get retrieves a prescription record
func (s *PrescriptionService) Get(ctx context.Context, id string) (*entities.PrescriptionRecord, error) {
	return s.prescriptionRepo.GetByID(ctx, id)
}

// List retrieves prescription records matching the filter
func (s *PrescriptionService) List(ctx context.Context, filter repositories.PrescriptionFilter) ([]*entities.PrescriptionRecord, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError("unknown verification status")
	}
	return s.prescriptionRepo.List(ctx, filter)
}

// History retrieves the audit trail for a prescription, newest first
func (s *PrescriptionService) History(ctx context.Context, prescriptionID string, limit int) ([]*entities.VerificationActivity, error) {
	if _, err := s.prescriptionRepo.GetByID(ctx, prescriptionID); err != nil {
		return nil, err
	}
	return s.activityRepo.ListByPrescription(ctx, prescriptionID, limit)
}
