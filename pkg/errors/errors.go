package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. It is exposed to API clients.
type Kind string

const (
	KindDuplicate          Kind = "duplicate"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindMalformedTimestamp Kind = "malformed_timestamp"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindTooLarge           Kind = "too_large"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// Codes narrow a kind for clients that need to branch on it.
const (
	CodeDuplicateSchedule = "DUPLICATE_SCHEDULE"
	CodeDuplicatePatient  = "DUPLICATE_PATIENT"
	CodeDuplicateSignedHC = "DUPLICATE_SIGNED_HC"
	CodeDuplicateEmail    = "DUPLICATE_EMAIL"
	CodeAccountLocked     = "ACCOUNT_LOCKED"
	CodeRecordRetired     = "RECORD_RETIRED"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
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

// Is matches another AppError by kind and, when set on target, by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// HTTPStatus maps the error kind onto a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindDuplicate:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindMalformedTimestamp:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithCode returns a copy of e carrying code.
func (e *AppError) WithCode(code string) *AppError {
	cp := *e
	cp.Code = code
	return &cp
}

// Sentinels for errors.Is checks.
var (
	ErrDuplicateSchedule  = &AppError{Kind: KindDuplicate, Code: CodeDuplicateSchedule}
	ErrNotFound           = &AppError{Kind: KindNotFound}
	ErrValidation         = &AppError{Kind: KindValidation}
	ErrMalformedTimestamp = &AppError{Kind: KindMalformedTimestamp}
	ErrForbidden          = &AppError{Kind: KindForbidden}
	ErrUnauthorized       = &AppError{Kind: KindUnauthorized}
)

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Err:     err,
	}
}

func Validation(format string, args ...interface{}) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

func Duplicate(code, message string) *AppError {
	return &AppError{
		Kind:    KindDuplicate,
		Code:    code,
		Message: message,
	}
}

func MalformedTimestamp(value string, err error) *AppError {
	return &AppError{
		Kind:    KindMalformedTimestamp,
		Message: fmt.Sprintf("malformed timestamp %q", value),
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Message: message,
	}
}

func TooLarge(limit int64) *AppError {
	return &AppError{
		Kind:    KindTooLarge,
		Message: fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}

func RateLimited() *AppError {
	return &AppError{
		Kind:    KindRateLimited,
		Message: "rate limit exceeded",
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// From converts any error into an AppError, wrapping unknown errors as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
