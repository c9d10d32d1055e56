package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Draft persistence error codes
const (
	ErrStorageRead ErrorCode = iota + 2000
	ErrStorageWrite
	ErrParse
	ErrRemoteFetch
	ErrIdentityConflict
)

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewStorageRead(err error) *AppError {
	return &AppError{
		Code:    ErrStorageRead,
		Message: "draft storage read failed",
		Err:     err,
	}
}

func NewStorageWrite(err error) *AppError {
	return &AppError{
		Code:    ErrStorageWrite,
		Message: "draft storage write failed",
		Err:     err,
	}
}

func NewParse(err error) *AppError {
	return &AppError{
		Code:    ErrParse,
		Message: "stored draft payload is unreadable",
		Err:     err,
	}
}

func NewRemoteFetch(err error) *AppError {
	return &AppError{
		Code:    ErrRemoteFetch,
		Message: "patient record service unavailable",
		Err:     err,
	}
}

func NewIdentityConflict(ownerID string) *AppError {
	return &AppError{
		Code:    ErrIdentityConflict,
		Message: fmt.Sprintf("a draft already exists for %s", ownerID),
	}
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
