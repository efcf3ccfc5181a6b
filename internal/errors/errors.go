package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a leadvault error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"        // 404
	ErrConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED" // 409
	ErrFileTooLarge         ErrorCode = "FILE_TOO_LARGE"        // 413
	ErrCancelled            ErrorCode = "CANCELLED"             // 499
	ErrInternal             ErrorCode = "INTERNAL"              // 500
)

// LeadError represents a structured error with code, status, and details.
type LeadError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *LeadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid input, such as a lead
// submitted without a name or link.
func NewInvalidRequest(msg string) *LeadError {
	return &LeadError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a lead id that is not in the collection.
func NewNotFound(id string) *LeadError {
	return &LeadError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("lead not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for import files that do not exist.
func NewFileNotFound(path string) *LeadError {
	return &LeadError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewFileTooLarge creates a 413 error for import files over the size limit.
func NewFileTooLarge(maxBytes, actualBytes int64) *LeadError {
	return &LeadError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file exceeds maximum size: %d bytes (max %d)", actualBytes, maxBytes),
		Details: map[string]any{"max_bytes": maxBytes, "actual_bytes": actualBytes},
	}
}

// NewConfirmationRequired creates a 409 error for destructive actions that
// were not confirmed.
func NewConfirmationRequired(action string) *LeadError {
	return &LeadError{
		Code:    ErrConfirmationRequired,
		Status:  409,
		Message: fmt.Sprintf("%s requires confirmation", action),
		Details: map[string]any{"action": action},
	}
}

// NewCancelled creates an error for operations stopped by context cancellation.
func NewCancelled(op string) *LeadError {
	return &LeadError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *LeadError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &LeadError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a LeadError with the given code.
func Is(err error, code ErrorCode) bool {
	var lErr *LeadError
	if stderrors.As(err, &lErr) {
		return lErr.Code == code
	}
	return false
}
