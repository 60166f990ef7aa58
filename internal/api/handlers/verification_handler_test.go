package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/medleaf/pharmacy-backend/internal/api/handlers"
	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Assign(ctx context.Context, prescriptionID, verifierID string) (*entities.PrescriptionRecord, error) {
	args := m.Called(ctx, prescriptionID, verifierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PrescriptionRecord), args.Error(1)
}

func (m *MockVerificationService) Decide(ctx context.Context, prescriptionID, verifierID string, outcome services.DecisionOutcome, notes string) (*services.DecisionResult, error) {
	args := m.Called(ctx, prescriptionID, verifierID, outcome, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DecisionResult), args.Error(1)
}

func (m *MockVerificationService) RequestClarification(ctx context.Context, prescriptionID, verifierID, message string) (*entities.PrescriptionRecord, error) {
	args := m.Called(ctx, prescriptionID, verifierID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PrescriptionRecord), args.Error(1)
}

func (m *MockVerificationService) Reassign(ctx context.Context, prescriptionID, newVerifierID, reason string) (*entities.PrescriptionRecord, error) {
	args := m.Called(ctx, prescriptionID, newVerifierID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PrescriptionRecord), args.Error(1)
}

type MockBulkAssigner struct {
	mock.Mock
}

func (m *MockBulkAssigner) BulkAssign(ctx context.Context, prescriptionIDs []string, strategy string) (*services.BulkAssignResult, error) {
	args := m.Called(ctx, prescriptionIDs, strategy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BulkAssignResult), args.Error(1)
}

func postJSON(t *testing.T, path, prescriptionID string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if prescriptionID != "" {
		req.SetPathValue("id", prescriptionID)
	}
	return req
}

func TestVerificationHandler_Assign(t *testing.T) {
	t.Run("returns the updated record", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		verifierID := "ver-1"
		record := &entities.PrescriptionRecord{
			ID:               "rx-1",
			Status:           entities.VerificationStatusInReview,
			AssignedVerifier: &verifierID,
		}
		service.On("Assign", mock.Anything, "rx-1", "ver-1").Return(record, nil)

		req := postJSON(t, "/api/prescriptions/rx-1/assign", "rx-1", map[string]string{"verifier_id": "ver-1"})
		rec := httptest.NewRecorder()

		// Act
		handler.Assign(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var got entities.PrescriptionRecord
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "rx-1", got.ID)
		assert.Equal(t, entities.VerificationStatusInReview, got.Status)
	})

	t.Run("requires a verifier id", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		req := postJSON(t, "/api/prescriptions/rx-1/assign", "rx-1", map[string]string{})
		rec := httptest.NewRecorder()

		// Act
		handler.Assign(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps capacity errors to 409", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		service.On("Assign", mock.Anything, "rx-1", "ver-1").
			Return(nil, apperrors.NewCapacityExceededError("verifier ver-1 cannot accept more prescriptions"))

		req := postJSON(t, "/api/prescriptions/rx-1/assign", "rx-1", map[string]string{"verifier_id": "ver-1"})
		rec := httptest.NewRecorder()

		// Act
		handler.Assign(rec, req)

		// Assert
		assert.Equal(t, http.StatusConflict, rec.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(apperrors.ErrorTypeCapacityExceeded), body["type"])
	})

	t.Run("maps missing prescriptions to 404", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		service.On("Assign", mock.Anything, "ghost", "ver-1").
			Return(nil, apperrors.NewNotFoundError("prescription not found"))

		req := postJSON(t, "/api/prescriptions/ghost/assign", "ghost", map[string]string{"verifier_id": "ver-1"})
		rec := httptest.NewRecorder()

		// Act
		handler.Assign(rec, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestVerificationHandler_Decide(t *testing.T) {
	t.Run("returns the decision result", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		result := &services.DecisionResult{
			Record:           &entities.PrescriptionRecord{ID: "rx-1", Status: entities.VerificationStatusApproved},
			NotificationSent: true,
			OrderID:          "order-5",
		}
		service.On("Decide", mock.Anything, "rx-1", "ver-1", services.DecisionOutcomeApproved, "fine").
			Return(result, nil)

		req := postJSON(t, "/api/prescriptions/rx-1/decision", "rx-1", map[string]string{
			"verifier_id": "ver-1",
			"outcome":     "approved",
			"notes":       "fine",
		})
		rec := httptest.NewRecorder()

		// Act
		handler.Decide(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var got services.DecisionResult
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "order-5", got.OrderID)
		assert.True(t, got.NotificationSent)
	})

	t.Run("maps a missing justification to 422", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		service.On("Decide", mock.Anything, "rx-1", "ver-1", services.DecisionOutcomeRejected, "no").
			Return(nil, apperrors.NewMissingJustificationError("rejection requires a justification of at least 10 characters"))

		req := postJSON(t, "/api/prescriptions/rx-1/decision", "rx-1", map[string]string{
			"verifier_id": "ver-1",
			"outcome":     "rejected",
			"notes":       "no",
		})
		rec := httptest.NewRecorder()

		// Act
		handler.Decide(rec, req)

		// Assert
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("maps a wrong-verifier decision to 403", func(t *testing.T) {
		// Arrange
		service := new(MockVerificationService)
		handler := handlers.NewVerificationHandler(service, nil)

		service.On("Decide", mock.Anything, "rx-1", "ver-2", services.DecisionOutcomeApproved, "").
			Return(nil, apperrors.NewUnauthorizedError("only the assigned verifier may decide this prescription"))

		req := postJSON(t, "/api/prescriptions/rx-1/decision", "rx-1", map[string]string{
			"verifier_id": "ver-2",
			"outcome":     "approved",
		})
		rec := httptest.NewRecorder()

		// Act
		handler.Decide(rec, req)

		// Assert
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestVerificationHandler_BulkAssign(t *testing.T) {
	t.Run("returns the batch report", func(t *testing.T) {
		// Arrange
		assigner := new(MockBulkAssigner)
		handler := handlers.NewVerificationHandler(nil, assigner)

		result := &services.BulkAssignResult{
			Assigned: []services.AssignedItem{{PrescriptionID: "rx-1", VerifierID: "ver-1"}},
			Failed:   []services.FailedItem{{PrescriptionID: "rx-2", Reason: "no eligible verifier"}},
		}
		assigner.On("BulkAssign", mock.Anything, []string{"rx-1", "rx-2"}, "balanced").Return(result, nil)

		req := postJSON(t, "/api/prescriptions/bulk-assign", "", map[string]interface{}{
			"prescription_ids": []string{"rx-1", "rx-2"},
			"strategy":         "balanced",
		})
		rec := httptest.NewRecorder()

		// Act
		handler.BulkAssign(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var got services.BulkAssignResult
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got.Assigned, 1)
		assert.Len(t, got.Failed, 1)
	})

	t.Run("maps an invalid strategy to 400", func(t *testing.T) {
		// Arrange
		assigner := new(MockBulkAssigner)
		handler := handlers.NewVerificationHandler(nil, assigner)

		assigner.On("BulkAssign", mock.Anything, []string{"rx-1"}, "random").
			Return(nil, apperrors.NewValidationError(`unknown assignment strategy "random"`))

		req := postJSON(t, "/api/prescriptions/bulk-assign", "", map[string]interface{}{
			"prescription_ids": []string{"rx-1"},
			"strategy":         "random",
		})
		rec := httptest.NewRecorder()

		// Act
		handler.BulkAssign(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
