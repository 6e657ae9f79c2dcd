// Package errors provides the structured error type shared by the pipeline,
// the transcription providers, the task store and the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError carries a stable code for clients, the message persisted as a
// task's last error and the HTTP status the API answers with.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches by code, so a value built with New works as a sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// New builds an AppError. Retryable follows the code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Retryable: IsRetryableCode(code)}
}

func Newf(code ErrorCode, httpStatus int, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...), httpStatus)
}

func NotFound(resource, id string) *AppError {
	e := Newf(ErrCodeNotFound, http.StatusNotFound, "The requested %s was not found.", resource).
		WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

func Conflict(reason string) *AppError {
	return New(ErrCodeConflict, reason, http.StatusConflict)
}

// InvalidInput reports a rejected request. field may be empty when the
// problem is not tied to one field.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason, http.StatusBadRequest)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.", http.StatusInternalServerError).WithCause(cause)
}

func DatabaseError(cause error) *AppError {
	return New(ErrCodeDatabaseError, "A database error occurred.", http.StatusInternalServerError).WithCause(cause)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Message returns the AppError message of err, or err.Error() for other
// errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
