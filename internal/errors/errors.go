package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an smn error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrCollectionExists   ErrorCode = "COLLECTION_EXISTS"   // 409
	ErrReservedCollection ErrorCode = "RESERVED_COLLECTION" // 409
	ErrDecodeFailed       ErrorCode = "DECODE_FAILED"       // 422
	ErrArchiveCorrupt     ErrorCode = "ARCHIVE_CORRUPT"     // 422
	ErrNoValidNotes       ErrorCode = "NO_VALID_NOTES"      // 422
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// SMNError represents a structured error with code, status, and details.
type SMNError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SMNError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SMNError {
	return &SMNError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a note cannot be found.
func NewNotFound(identifier string) *SMNError {
	return &SMNError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCollectionNotFound creates a 404 error for an unknown collection.
func NewCollectionNotFound(name string) *SMNError {
	return &SMNError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("collection not found: %s", name),
		Details: map[string]any{"collection": name},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *SMNError {
	return &SMNError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCollectionExists creates a 409 error when a rename target is taken.
func NewCollectionExists(name string) *SMNError {
	return &SMNError{
		Code:    ErrCollectionExists,
		Status:  409,
		Message: fmt.Sprintf("collection %q already exists", name),
		Details: map[string]any{"collection": name},
	}
}

// NewReservedCollection creates a 409 error for attempts to rename or delete
// the Default collection.
func NewReservedCollection(name string) *SMNError {
	return &SMNError{
		Code:    ErrReservedCollection,
		Status:  409,
		Message: fmt.Sprintf("collection %q is reserved and cannot be renamed or deleted", name),
		Details: map[string]any{"collection": name},
	}
}

// NewDecodeFailed creates a 422 error for an archive document that could not
// be turned back into a note. The message is the human-readable reason.
func NewDecodeFailed(reason string) *SMNError {
	return &SMNError{
		Code:    ErrDecodeFailed,
		Status:  422,
		Message: reason,
	}
}

// NewArchiveCorrupt creates a 422 error when the container itself can't be opened.
func NewArchiveCorrupt(err error) *SMNError {
	msg := "failed to process zip file"
	if err != nil {
		msg = fmt.Sprintf("failed to process zip file: %v", err)
	}
	return &SMNError{
		Code:    ErrArchiveCorrupt,
		Status:  422,
		Message: msg,
	}
}

// NewNoValidNotes creates a 422 error for a readable container with nothing to import.
func NewNoValidNotes() *SMNError {
	return &SMNError{
		Code:    ErrNoValidNotes,
		Status:  422,
		Message: "No valid notes found in the zip file",
	}
}

// NewCancelled creates a 499 error for an operation aborted by its context.
func NewCancelled(op string) *SMNError {
	return &SMNError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *SMNError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &SMNError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if err (or anything it wraps) is an SMNError with the given code.
func Is(err error, code ErrorCode) bool {
	var smnErr *SMNError
	if stderrors.As(err, &smnErr) {
		return smnErr.Code == code
	}
	return false
}

// Message returns the human-readable part of err: the Message of an SMNError,
// or err.Error() for anything else.
func Message(err error) string {
	var smnErr *SMNError
	if stderrors.As(err, &smnErr) {
		return smnErr.Message
	}
	return err.Error()
}
