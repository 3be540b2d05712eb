package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION_ERROR"
	ErrorTypeLimitExceeded    ErrorType = "LIMIT_EXCEEDED"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeInvalidState     ErrorType = "INVALID_STATE"
	ErrorTypeDependency       ErrorType = "DEPENDENCY_ERROR"
	ErrorTypeAuthorizationGap ErrorType = "AUTHORIZATION_GAP"
	ErrorTypeInternal         ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount     ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidReference  ErrorCode = "INVALID_REFERENCE"
	ErrCodeInvalidStatus     ErrorCode = "INVALID_STATUS"
	ErrCodeAmountTooHigh     ErrorCode = "AMOUNT_TOO_HIGH"
	ErrCodePaymentNotFound   ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeAlreadyApproved   ErrorCode = "PAYMENT_ALREADY_APPROVED"
	ErrCodeConfigUnavailable ErrorCode = "CONFIG_UNAVAILABLE"
	ErrCodeKeyUnavailable    ErrorCode = "KEY_MANAGER_UNAVAILABLE"
	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeEncryptNotGranted ErrorCode = "ENCRYPT_NOT_GRANTED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy so package-level error values stay untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Is matches on Type and Code so errors.Is works against the package-level values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Retryable reports whether a caller may retry the operation with backoff.
func (e *AppError) Retryable() bool {
	return e.Type == ErrorTypeDependency
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewLimitExceededError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeLimitExceeded,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewInvalidStateError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewDependencyError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDependency,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

func NewAuthorizationGapError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthorizationGap,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrPaymentNotFound   = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrAlreadyApproved   = NewInvalidStateError("payment is not pending approval", ErrCodeAlreadyApproved)
	ErrAmountTooHigh     = NewLimitExceededError("amount exceeds the maximum allowed payment amount", ErrCodeAmountTooHigh)
	ErrEncryptNotGranted = NewAuthorizationGapError("create operation lacks the encrypt grant", ErrCodeEncryptNotGranted)
)

// IsAppError unwraps err until it finds an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Type == t
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
