package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrixhub/catalog-server/internal/service"
)

// Client-facing messages. Internal error text never reaches the response body.
const (
	MsgEntityNotFound      = "Entity not found"
	MsgUserNotFound        = "User not found"
	MsgInvalidCredentials  = "Invalid username or password"
	MsgAgentIDTaken        = "Agent ID already registered. Please choose a different ID."
	MsgStorageUnavailable  = "Service temporarily unavailable"
	MsgInternalServerError = "Internal server error"
)

// WriteServiceError maps a service error to its HTTP status and body
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr)
	case errors.Is(err, service.ErrEntityNotFound):
		WriteErrorResponse(w, MsgEntityNotFound, http.StatusNotFound)
	case errors.Is(err, service.ErrUserNotFound):
		WriteErrorResponse(w, MsgUserNotFound, http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteErrorResponse(w, MsgInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, service.ErrAgentIDTaken):
		WriteErrorResponse(w, MsgAgentIDTaken, http.StatusConflict)
	case errors.Is(err, service.ErrStorageUnavailable):
		// already logged with full context by the service
		WriteErrorResponse(w, MsgStorageUnavailable, http.StatusInternalServerError)
	default:
		slog.ErrorContext(r.Context(), "Unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
		WriteErrorResponse(w, MsgInternalServerError, http.StatusInternalServerError)
	}
}
