package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorCategory string

const (
	ErrValidationFailed    ErrorCategory = "VALIDATION_FAILED"
	ErrNotFound            ErrorCategory = "NOT_FOUND"
	ErrInsufficientStock   ErrorCategory = "INSUFFICIENT_STOCK"
	ErrDuplicateBillNumber ErrorCategory = "DUPLICATE_BILL_NUMBER"
	ErrUnauthorized        ErrorCategory = "UNAUTHORIZED"
	ErrForbidden           ErrorCategory = "FORBIDDEN"
	ErrInternal            ErrorCategory = "INTERNAL_ERROR"
)

// AppError is the error every handler maps onto an HTTP response.
type AppError struct {
	Category ErrorCategory
	Message  string
	Fields   map[string]string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(category ErrorCategory, format string, args ...any) *AppError {
	return &AppError{Category: category, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) *AppError {
	return NewAppError(ErrValidationFailed, format, args...)
}

func NotFoundError(format string, args ...any) *AppError {
	return NewAppError(ErrNotFound, format, args...)
}

func InternalError(err error, message string) *AppError {
	return &AppError{Category: ErrInternal, Message: message, Err: err}
}

// CategoryOf classifies any error. Unknown errors are internal, record-not-found is NOT_FOUND.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return ErrNotFound
	}
	return ErrInternal
}

func IsCategory(err error, category ErrorCategory) bool {
	return CategoryOf(err) == category
}

func HTTPStatus(category ErrorCategory) int {
	switch category {
	case ErrValidationFailed:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInsufficientStock, ErrDuplicateBillNumber:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
