package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
)

// PrescriptionService defines the interface for prescription intake and reads
type PrescriptionService interface {
	Upload(ctx context.Context, req *services.UploadRequest) (*entities.PrescriptionRecord, error)
	Get(ctx context.Context, id string) (*entities.PrescriptionRecord, error)
	List(ctx context.Context, filter repositories.PrescriptionFilter) ([]*entities.PrescriptionRecord, error)
	History(ctx context.Context, prescriptionID string, limit int) ([]*entities.VerificationActivity, error)
}

// CustomerResponseRecorder records clarification answers from customers
type CustomerResponseRecorder interface {
	RecordCustomerResponse(ctx context.Context, prescriptionID, response string) (*entities.PrescriptionRecord, error)
}

// PrescriptionHandler handles prescription requests
type PrescriptionHandler struct {
	service  PrescriptionService
	recorder CustomerResponseRecorder
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(service PrescriptionService, recorder CustomerResponseRecorder) *PrescriptionHandler {
	return &PrescriptionHandler{
		service:  service,
		recorder: recorder,
	}
}

// uploadRequest is the JSON body for POST /api/prescriptions. Data carries the
// image bytes base64 encoded.
type uploadRequest struct {
	CustomerID      string `json:"customer_id"`
	Filename        string `json:"filename"`
	ContentType     string `json:"content_type"`
	Data            []byte `json:"data"`
	MedicationHints string `json:"medication_hints"`
	IsUrgent        bool   `json:"is_urgent"`
	PriorityLevel   int    `json:"priority_level"`
}

// Upload handles POST /api/prescriptions
func (h *PrescriptionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	record, err := h.service.Upload(r.Context(), &services.UploadRequest{
		CustomerID:      req.CustomerID,
		Filename:        req.Filename,
		ContentType:     req.ContentType,
		Data:            req.Data,
		MedicationHints: req.MedicationHints,
		IsUrgent:        req.IsUrgent,
		PriorityLevel:   req.PriorityLevel,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, record)
}

// Get handles GET /api/prescriptions/{id}
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// List handles GET /api/prescriptions
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repositories.PrescriptionFilter{
		Status:           entities.VerificationStatus(q.Get("status")),
		CustomerID:       q.Get("customer_id"),
		AssignedVerifier: q.Get("verifier_id"),
		UnassignedOnly:   q.Get("unassigned") == "true",
		Limit:            parseIntParam(q.Get("limit"), 50),
		Offset:           parseIntParam(q.Get("offset"), 0),
	}
	if urgent := q.Get("urgent"); urgent != "" {
		isUrgent := urgent == "true"
		filter.IsUrgent = &isUrgent
	}

	records, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"prescriptions": records,
		"count":         len(records),
	})
}

// History handles GET /api/prescriptions/{id}/history
func (h *PrescriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	activities, err := h.service.History(r.Context(), id, parseIntParam(r.URL.Query().Get("limit"), 100))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"count":      len(activities),
	})
}

// Respond handles POST /api/prescriptions/{id}/response
func (h *PrescriptionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "prescription ID is required")
		return
	}

	var req struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	record, err := h.recorder.RecordCustomerResponse(r.Context(), id, req.Response)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

func parseIntParam(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
