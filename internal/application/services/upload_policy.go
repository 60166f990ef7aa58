package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/pkg/config"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// allowedContentTypes are the image formats accepted for prescription uploads
var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// suspiciousMarkers are byte patterns that have no business inside a prescription
// image and indicate a crafted upload
var suspiciousMarkers = [][]byte{
	[]byte("<script"),
	[]byte("<?php"),
	[]byte("<%"),
}

// UploadPolicy validates prescription uploads before a record is created
type UploadPolicy struct {
	prescriptionRepo repositories.PrescriptionRepository
	maxSizeBytes     int64
	dailyCap         int
}

// NewUploadPolicy creates a new upload policy from the verification config
func NewUploadPolicy(prescriptionRepo repositories.PrescriptionRepository, cfg config.VerificationConfig) *UploadPolicy {
	return &UploadPolicy{
		prescriptionRepo: prescriptionRepo,
		maxSizeBytes:     cfg.UploadMaxSizeBytes,
		dailyCap:         cfg.UploadDailyCap,
	}
}

// Validate checks content type, size, scan markers and the customer's daily cap.
// Returns a typed validation or conflict error when the upload must be refused.
func (p *UploadPolicy) Validate(ctx context.Context, customerID, contentType string, data []byte) error {
	if len(data) == 0 {
		return apperrors.NewValidationError("upload is empty")
	}
	if int64(len(data)) > p.maxSizeBytes {
		return apperrors.NewValidationError(fmt.Sprintf("upload exceeds maximum size of %d bytes", p.maxSizeBytes))
	}

	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if !allowedContentTypes[normalized] {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported content type %q", contentType))
	}

	lowered := bytes.ToLower(data)
	for _, marker := range suspiciousMarkers {
		if bytes.Contains(lowered, marker) {
			return apperrors.NewValidationError("upload contains disallowed content")
		}
	}

	midnight := startOfDay(time.Now())
	count, err := p.prescriptionRepo.CountByCustomerSince(ctx, customerID, midnight)
	if err != nil {
		return err
	}
	if count >= p.dailyCap {
		return apperrors.NewConflictError(fmt.Sprintf("daily upload limit of %d reached", p.dailyCap))
	}

	return nil
}

// startOfDay returns local midnight for the given time
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
