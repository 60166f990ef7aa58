package handlers

import (
	"context"
	"net/http"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// AnalyticsService defines the interface for dashboard and stats reads
type AnalyticsService interface {
	GetDashboard(ctx context.Context) (*entities.DashboardCounts, error)
	GetSystemHealth(ctx context.Context) (*entities.SystemHealth, error)
	GetVerifierStats(ctx context.Context, verifierID string) (*entities.VerifierStats, error)
}

// AnalyticsHandler handles dashboard and stats requests
type AnalyticsHandler struct {
	service AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

// Dashboard handles GET /api/dashboard
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.GetDashboard(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, counts)
}

// SystemHealth handles GET /api/system/health
func (h *AnalyticsHandler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.service.GetSystemHealth(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, health)
}

// VerifierStats handles GET /api/verifiers/{id}/stats
func (h *AnalyticsHandler) VerifierStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "verifier ID is required")
		return
	}

	stats, err := h.service.GetVerifierStats(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
