package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//   decodeJSON(w, r, &req)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "recording not found with id abc123"}
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "invalid email address", "field": "email"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/musophile/internal/apperror"
	"github.com/sakif/musophile/internal/auth"
	"github.com/sakif/musophile/internal/service"
)

// maxBodyBytes caps request bodies. Every JSON form in this API is tiny.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set on validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be written BEFORE the body. Once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation      → 400 validation_error
//	ErrUnauthorized    → 401 unauthorized
//	ErrForbidden       → 403 forbidden
//	ErrNotFound        → 404 not_found
//	ErrConflict        → 409 conflict
//	ErrAuthExchange    → 502 auth_exchange_failed
//	ErrMetadataLookup  → 502 metadata_lookup_failed
//	ErrTimeout         → 504 timeout
//	anything else      → 500 internal_error (details never leave the server)
//
// errors.Is walks the whole chain, so a service can wrap an AppError with
// fmt.Errorf("...: %w", err) and the mapping still works.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrStreamingNotAuthorized) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "streaming_not_authorized",
			Message: err.Error(),
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrAuthExchange):
			status = http.StatusBadGateway
			errorType = "auth_exchange_failed"
		case errors.Is(err, apperror.ErrMetadataLookup):
			status = http.StatusBadGateway
			errorType = "metadata_lookup_failed"
		case errors.Is(err, apperror.ErrTimeout):
			status = http.StatusGatewayTimeout
			errorType = "timeout"
		}

		resp := ErrorResponse{Error: errorType, Message: appErr.Message}
		if status == http.StatusInternalServerError {
			resp.Message = "An internal error occurred"
		}
		if status == http.StatusBadRequest {
			resp.Field = appErr.Field
		}
		writeJSON(w, status, resp)
		return
	}

	// NEVER expose internal error details to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst. A malformed or oversized body
// is reported to the client as a 400 and decodeJSON returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return false
	}
	return true
}

// sessionUser returns the logged-in user's ID. RequireAuth guarantees one on
// protected routes; if it is missing anyway the client gets a 401.
func sessionUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return "", false
	}
	return userID, true
}
