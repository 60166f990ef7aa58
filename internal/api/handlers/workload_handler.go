package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// WorkloadService defines the interface for verifier workload operations
type WorkloadService interface {
	GetSnapshot(ctx context.Context, verifierID string) (*entities.WorkloadSnapshot, error)
	ListSnapshots(ctx context.Context) ([]*entities.WorkloadSnapshot, error)
	SetAvailability(ctx context.Context, verifierID string, available bool) error
	Reconcile(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error)
	ProvisionVerifier(ctx context.Context, req *services.ProvisionRequest) (*entities.User, error)
}

// WorkloadHandler handles verifier workload requests
type WorkloadHandler struct {
	service WorkloadService
}

// NewWorkloadHandler creates a new workload handler
func NewWorkloadHandler(service WorkloadService) *WorkloadHandler {
	return &WorkloadHandler{
		service: service,
	}
}

// GetWorkload handles GET /api/verifiers/{id}/workload
func (h *WorkloadHandler) GetWorkload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "verifier ID is required")
		return
	}

	snapshot, err := h.service.GetSnapshot(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}

// ListWorkloads handles GET /api/verifiers
func (h *WorkloadHandler) ListWorkloads(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.ListSnapshots(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"verifiers": snapshots,
		"count":     len(snapshots),
	})
}

// SetAvailability handles PUT /api/verifiers/{id}/availability
func (h *WorkloadHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "verifier ID is required")
		return
	}

	var req struct {
		IsAvailable *bool `json:"is_available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.IsAvailable == nil {
		respondWithError(w, http.StatusBadRequest, "is_available is required")
		return
	}

	if err := h.service.SetAvailability(r.Context(), id, *req.IsAvailable); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"verifier_id":  id,
		"is_available": *req.IsAvailable,
	})
}

// Reconcile handles POST /api/verifiers/{id}/reconcile
func (h *WorkloadHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "verifier ID is required")
		return
	}

	workload, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, workload)
}

// Provision handles POST /api/verifiers
func (h *WorkloadHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email            string `json:"email"`
		FullName         string `json:"full_name"`
		Phone            string `json:"phone"`
		MaxDailyCapacity int    `json:"max_daily_capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := h.service.ProvisionVerifier(r.Context(), &services.ProvisionRequest{
		Email:            req.Email,
		FullName:         req.FullName,
		Phone:            req.Phone,
		MaxDailyCapacity: req.MaxDailyCapacity,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, user)
}
