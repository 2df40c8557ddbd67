// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/matrixhub/catalog-server/internal/service"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string               `json:"error"`
	Details []service.FieldError `json:"details,omitempty"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}

// WriteValidationError writes a 400 response listing the offending fields
func WriteValidationError(w http.ResponseWriter, verr *service.ValidationError) {
	WriteJSONResponse(w, ErrorResponse{Error: "Invalid request", Details: verr.Fields}, http.StatusBadRequest)
}
