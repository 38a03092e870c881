package common

import (
	"errors"
	"net/http"
)

// Error codes shared by every handler. Feature packages add their own
// (BELOW_MINIMUM_PURCHASE, CART_BUSY, ...) next to the code that raises them.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeValidation  = "VALIDATION_FAILED"
	CodeNotFound    = "NOT_FOUND"
	CodeInternal    = "INTERNAL"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError is a failure that already knows how it should be rendered.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BadRequest is a 400 for payloads that could not be read at all.
func BadRequest(message string, err error) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, HTTPStatus: http.StatusBadRequest, Err: err}
}

// Invalid is a 422 carrying per-field details.
func Invalid(message string, err error, details any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: details}
}

// Internal is a 500 whose cause is kept for logs but not rendered.
func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// AsAppError unwraps err to an *AppError when one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// WriteError renders any error: AppErrors keep their status and code,
// everything else becomes a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	if appErr, ok := AsAppError(err); ok {
		WriteAppError(w, appErr)
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
}
