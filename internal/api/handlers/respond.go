package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps typed application errors onto HTTP status codes
func respondWithAppError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeMissingJustification:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrorTypeUnauthorized, apperrors.ErrorTypeNotAVerifier:
		status = http.StatusForbidden
	case apperrors.ErrorTypeConflict,
		apperrors.ErrorTypeConflictOfInterest,
		apperrors.ErrorTypeDecisionNotAllowed,
		apperrors.ErrorTypeCapacityExceeded,
		apperrors.ErrorTypeConcurrencyConflict:
		status = http.StatusConflict
	case apperrors.ErrorTypeExternal:
		status = http.StatusBadGateway
	}

	respondWithJSON(w, status, map[string]string{
		"error": appErr.Message,
		"type":  string(appErr.Type),
	})
}
