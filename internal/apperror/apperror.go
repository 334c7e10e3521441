// Package apperror defines the error taxonomy shared by the watch store,
// the service layer and the local API.
//
// Every error the store returns is an *AppError whose Err field is one of
// the sentinels below, so callers branch with errors.Is:
//
//	if errors.Is(err, apperror.ErrConnection) { ... }
//
// The underlying engine error (if any) is kept in Cause and is also
// reachable through errors.Is / errors.As.
package apperror

import (
	"errors"
	"fmt"
)

// Store error kinds.
var (
	ErrConnection = errors.New("connection error")
	ErrInsert     = errors.New("insert error")
	ErrDelete     = errors.New("delete error")
	ErrSearch     = errors.New("search error")
	ErrUpdate     = errors.New("update error")
	ErrNilInData  = errors.New("nil in data")
)

// Service and API error kinds.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

// AppError is the concrete error type returned by the store and services.
type AppError struct {
	Err     error  // error kind, one of the sentinels above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying engine error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Connection reports that the store has no live connection or that schema
// creation failed.
func Connection(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrConnection,
		Message: fmt.Sprintf("%s: store unavailable", op),
		Cause:   cause,
	}
}

// InsertFailed reports a rejected or failed insert, including a duplicate key.
func InsertFailed(resource, key string, cause error) *AppError {
	return &AppError{
		Err:     ErrInsert,
		Message: fmt.Sprintf("inserting %s %s", resource, key),
		Cause:   cause,
	}
}

// DeleteFailed covers both a missing key and more than one affected row.
func DeleteFailed(resource, key string, cause error) *AppError {
	return &AppError{
		Err:     ErrDelete,
		Message: fmt.Sprintf("deleting %s %s", resource, key),
		Cause:   cause,
	}
}

// SearchFailed reports a failed query. A missing record is not a search failure.
func SearchFailed(resource string, cause error) *AppError {
	return &AppError{
		Err:     ErrSearch,
		Message: fmt.Sprintf("searching %s", resource),
		Cause:   cause,
	}
}

// UpdateFailed reports an update that matched no row or failed to write.
func UpdateFailed(resource, key string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpdate,
		Message: fmt.Sprintf("updating %s %s", resource, key),
		Cause:   cause,
	}
}

// NilInData reports a required field supplied as absent.
func NilInData(resource, field string) *AppError {
	return &AppError{
		Err:     ErrNilInData,
		Message: fmt.Sprintf("%s: %s is required", resource, field),
		Field:   field,
	}
}

// NotFound reports a key with no watch behind it.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, key),
	}
}

// ValidationFailed reports caller input rejected before reaching the store.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}
