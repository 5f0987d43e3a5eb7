// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantrychef/pkg/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeData wraps data in a successful APIResponse
func writeData(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	writeJSON(w, logger, status, APIResponse{Success: true, Data: data})
}

// writeError logs server-side failures and writes the error body
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	appErr := apperrors.Wrap(err, "An unexpected error occurred")
	if appErr.StatusCode() >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	}
	middleware.WriteError(w, appErr)
}

// decodeJSON reads a JSON body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewBadRequestError("Request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.NewBadRequestError("Request body too large")
		}
		return apperrors.NewBadRequestError("Invalid JSON payload").WithCause(err)
	}
	return nil
}

// requireSession returns the session set by the auth middleware
func requireSession(r *http.Request) (*outbound.Session, error) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return nil, apperrors.NewUnauthorizedError("")
	}
	return session, nil
}
