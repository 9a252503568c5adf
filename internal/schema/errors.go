package schema

import (
	"errors"
	"fmt"
)

// Error is a failure to read or change a collection's schema.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Collection is the affected table.
	Collection string

	// Column is the column being added (ErrCodeExtension only).
	Column string

	// Err is the underlying storage error.
	Err error
}

// ErrorCode categorizes schema errors.
type ErrorCode string

const (
	// ErrCodeIntrospection indicates the column set could not be read.
	ErrCodeIntrospection ErrorCode = "INTROSPECTION_FAILED"

	// ErrCodeCreate indicates the table could not be created.
	ErrCodeCreate ErrorCode = "CREATE_FAILED"

	// ErrCodeExtension indicates a column could not be added.
	ErrCodeExtension ErrorCode = "EXTENSION_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s.%s: %v", e.Code, e.Collection, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Collection, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsIntrospectionError returns true if the column set could not be read.
// Uses errors.As to handle wrapped errors.
func IsIntrospectionError(err error) bool {
	return hasCode(err, ErrCodeIntrospection)
}

// IsExtensionError returns true if the table could not be created or a
// column could not be added.
func IsExtensionError(err error) bool {
	return hasCode(err, ErrCodeExtension) || hasCode(err, ErrCodeCreate)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
