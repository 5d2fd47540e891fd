package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to callers.
const (
	CodeAuthenticationMissing = "AUTHENTICATION_MISSING"
	CodeAuthorizationDenied   = "AUTHORIZATION_DENIED"
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeBackendUnavailable    = "BACKEND_UNAVAILABLE"
	CodeMuted                 = "MUTED"
	CodeRenameRequired        = "RENAME_REQUIRED"
	CodeInternal              = "INTERNAL_ERROR"
)

// DenyReason distinguishes why an authorization check failed.
type DenyReason string

const (
	ReasonInsufficientRank DenyReason = "insufficient_rank"
	ReasonTargetImmune     DenyReason = "target_immune"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Reason  DenyReason
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAuthenticationMissingError is returned when no usable identity was
// presented.
func NewAuthenticationMissingError(message string) *AppError {
	return &AppError{
		Code:    CodeAuthenticationMissing,
		Message: message,
	}
}

// NewAuthorizationDeniedError is returned when an identity is known but may
// not perform the action.
func NewAuthorizationDeniedError(reason DenyReason, message string) *AppError {
	return &AppError{
		Code:    CodeAuthorizationDenied,
		Reason:  reason,
		Message: message,
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewBackendUnavailableError wraps a transient storage or identity-provider
// failure.
func NewBackendUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeBackendUnavailable,
		Message: "Backend temporarily unavailable",
		Err:     err,
	}
}

// NewMutedError rejects a message from an author whose mute window is open.
func NewMutedError(until time.Time) *AppError {
	return &AppError{
		Code:    CodeMuted,
		Message: fmt.Sprintf("You are muted until %s", until.UTC().Format(time.RFC3339)),
	}
}

// NewRenameRequiredError rejects writes until the author picks a new name.
func NewRenameRequiredError() *AppError {
	return &AppError{
		Code:    CodeRenameRequired,
		Message: "A moderator requires you to change your display name before posting",
	}
}

// ErrorCode returns the AppError code carried by err, or "" when err is not
// an AppError.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// HTTPStatus maps an error to the status code it should be served with.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case CodeAuthenticationMissing:
		return fiber.StatusUnauthorized
	case CodeAuthorizationDenied, CodeMuted, CodeRenameRequired:
		return fiber.StatusForbidden
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeBackendUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:  appErr.Message,
			Code:   appErr.Code,
			Reason: string(appErr.Reason),
		}
		// Internal details are only exposed for validation-style errors.
		if appErr.Err != nil && appErr.Code != CodeInternal && appErr.Code != CodeBackendUnavailable {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError responds using the status HTTPStatus picks for err.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, HTTPStatus(err), err)
}
