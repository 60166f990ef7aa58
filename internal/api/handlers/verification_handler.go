package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// VerificationService defines the interface for prescription state transitions
type VerificationService interface {
	Assign(ctx context.Context, prescriptionID, verifierID string) (*entities.PrescriptionRecord, error)
	Decide(ctx context.Context, prescriptionID, verifierID string, outcome services.DecisionOutcome, notes string) (*services.DecisionResult, error)
	RequestClarification(ctx context.Context, prescriptionID, verifierID, message string) (*entities.PrescriptionRecord, error)
	Reassign(ctx context.Context, prescriptionID, newVerifierID, reason string) (*entities.PrescriptionRecord, error)
}

// BulkAssigner defines the interface for bulk assignment runs
type BulkAssigner interface {
	BulkAssign(ctx context.Context, prescriptionIDs []string, strategy string) (*services.BulkAssignResult, error)
}

// VerificationHandler handles verification workflow requests
type VerificationHandler struct {
	service  VerificationService
	assigner BulkAssigner
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(service VerificationService, assigner BulkAssigner) *VerificationHandler {
	return &VerificationHandler{
		service:  service,
		assigner: assigner,
	}
}

// Assign handles POST /api/prescriptions/{id}/assign
func (h *VerificationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	var req struct {
		VerifierID string `json:"verifier_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.VerifierID == "" {
		respondWithError(w, http.StatusBadRequest, "verifier_id is required")
		return
	}

	record, err := h.service.Assign(r.Context(), id, req.VerifierID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// Decide handles POST /api/prescriptions/{id}/decision
func (h *VerificationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	var req struct {
		VerifierID string `json:"verifier_id"`
		Outcome    string `json:"outcome"`
		Notes      string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.VerifierID == "" {
		respondWithError(w, http.StatusBadRequest, "verifier_id is required")
		return
	}

	result, err := h.service.Decide(r.Context(), id, req.VerifierID, services.DecisionOutcome(req.Outcome), req.Notes)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// RequestClarification handles POST /api/prescriptions/{id}/clarification
func (h *VerificationHandler) RequestClarification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	var req struct {
		VerifierID string `json:"verifier_id"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.VerifierID == "" {
		respondWithError(w, http.StatusBadRequest, "verifier_id is required")
		return
	}

	record, err := h.service.RequestClarification(r.Context(), id, req.VerifierID, req.Message)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// Reassign handles POST /api/prescriptions/{id}/reassign
func (h *VerificationHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	var req struct {
		VerifierID string `json:"verifier_id"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.VerifierID == "" {
		respondWithError(w, http.StatusBadRequest, "verifier_id is required")
		return
	}

	record, err := h.service.Reassign(r.Context(), id, req.VerifierID, req.Reason)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// BulkAssign handles POST /api/prescriptions/bulk-assign
func (h *VerificationHandler) BulkAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrescriptionIDs []string `json:"prescription_ids"`
		Strategy        string   `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.assigner.BulkAssign(r.Context(), req.PrescriptionIDs, req.Strategy)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
