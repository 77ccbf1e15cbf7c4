// Package apperr carries the stable error codes returned across the service
// boundary. Business-rule rejections are typed; everything else is INTERNAL.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeCapacityExceeded      Code = "CAPACITY_EXCEEDED"
	CodeInvalidLifecycleState Code = "INVALID_LIFECYCLE_STATE"
	CodeUnsupportedType       Code = "UNSUPPORTED_TYPE"
	CodeFileTooLarge          Code = "FILE_TOO_LARGE"
	CodeStateConflict         Code = "STATE_CONFLICT"
	CodeUploadNotVerified     Code = "UPLOAD_NOT_VERIFIED"
	CodeStorageDeleteFailed   Code = "STORAGE_DELETE_FAILED"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeInternal              Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can write errors.Is(err, apperr.CapacityExceeded("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func CapacityExceeded(message string) *Error { return New(CodeCapacityExceeded, message) }

func InvalidLifecycleState(message string) *Error { return New(CodeInvalidLifecycleState, message) }

func UnsupportedType(message string) *Error { return New(CodeUnsupportedType, message) }

func FileTooLarge(message string) *Error { return New(CodeFileTooLarge, message) }

func StateConflict(message string) *Error { return New(CodeStateConflict, message) }

func UploadNotVerified(message string, err error) *Error {
	return Wrap(CodeUploadNotVerified, message, err)
}

func StorageDeleteFailed(message string, err error) *Error {
	return Wrap(CodeStorageDeleteFailed, message, err)
}

func InvalidInput(message string) *Error { return New(CodeInvalidInput, message) }

func NotFound(message string) *Error { return New(CodeNotFound, message) }

func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }

func Forbidden(message string) *Error { return New(CodeForbidden, message) }

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message. Untyped errors are not exposed.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeCapacityExceeded, CodeStateConflict:
		return http.StatusConflict
	case CodeInvalidLifecycleState, CodeForbidden:
		return http.StatusForbidden
	case CodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUploadNotVerified:
		return http.StatusUnprocessableEntity
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
