// Package apperrors defines application-level error types.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrUpgradeRequired marks an authentication/authorization failure on
// a stateless fetch; callers surface it as a redirect-to-upgrade flow
// instead of swallowing it.
var ErrUpgradeRequired = errors.New("authentication upgrade required")

// LayoutError indicates a layout file could not be loaded or failed
// structural validation.
type LayoutError struct {
	Path    string
	Message string
	Details []string
}

func (e *LayoutError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("layout %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("layout %s: %s (%d problems)", e.Path, e.Message, len(e.Details))
}

// NewLayoutError creates a new layout error.
func NewLayoutError(path, message string, details ...string) *LayoutError {
	return &LayoutError{Path: path, Message: message, Details: details}
}

// BackendError indicates a backend request failed at the transport or
// protocol level (not a validation rejection).
type BackendError struct {
	Operation  string
	StatusCode int
	Cause      error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %s failed (status %d): %v", e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("backend %s failed (status %d)", e.Operation, e.StatusCode)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError creates a new backend error.
func NewBackendError(operation string, statusCode int, cause error) *BackendError {
	return &BackendError{Operation: operation, StatusCode: statusCode, Cause: cause}
}

// SchemaError indicates the data-model JSON Schema itself could not be
// compiled (as opposed to data failing validation).
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Path, e.Message)
}

// NewSchemaError creates a new schema error.
func NewSchemaError(path, message string) *SchemaError {
	return &SchemaError{Path: path, Message: message}
}
