// Package apperror defines the domain error kinds shared by every layer.
// Services return these; handlers map them to HTTP status codes.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("Validation Error")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrAuthExchange   = errors.New("authorization exchange failed")
	ErrMetadataLookup = errors.New("metadata lookup failed")
	ErrTimeout        = errors.New("timeout")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, kept for logs
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. detail names what collided,
// e.g. "username or email already taken".
func Conflict(resource, detail string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, detail),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized marks a remote call rejected for expired or missing credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AuthExchange wraps a failed authorization-code or refresh-token grant.
func AuthExchange(grant string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuthExchange,
		Message: fmt.Sprintf("%s grant failed", grant),
		Cause:   cause,
	}
}

// MetadataLookup wraps a failed recording lookup against the metadata service.
func MetadataLookup(id string, cause error) *AppError {
	return &AppError{
		Err:     ErrMetadataLookup,
		Message: fmt.Sprintf("metadata lookup failed for recording %s", id),
		Cause:   cause,
	}
}

// Timeout reports an outbound call that exceeded its deadline.
func Timeout(operation string, cause error) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("%s timed out", operation),
		Cause:   cause,
	}
}

// IsTimeout reports whether err is a context deadline or a network timeout,
// including http.Client.Timeout expiring.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
