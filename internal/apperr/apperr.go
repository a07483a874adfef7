// Package apperr defines the failure taxonomy shared by every service
// operation. Handlers inspect the kind to choose a response code and
// forward the machine-readable code to clients.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindUnauthenticated
	KindStorageIO
)

type Error struct {
	Kind    Kind
	Code    string            // stable machine label, e.g. TASK_NOT_FOUND
	Message string            // human-readable message
	Fields  map[string]string // field -> message, validation failures only
	Err     error             // wrapped cause, may be nil
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

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: message, Fields: fields}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: message}
}

func StorageIO(message string, err error) *Error {
	return &Error{Kind: KindStorageIO, Code: "STORAGE_IO_FAILURE", Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from err, defaulting to KindInternal
// for errors that did not originate in a service operation.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps a taxonomy kind to its stable response code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return 404
	case KindValidation:
		return 400
	case KindConflict:
		return 409
	case KindUnauthenticated:
		return 401
	case KindStorageIO:
		return 500
	default:
		return 500
	}
}
