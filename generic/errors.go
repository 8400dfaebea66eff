/*
errors.go - Centralized error types for the shop engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Ledger packages return these (often wrapped with %w) so callers and the
  HTTP layer can classify failures with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation  - missing or malformed input, illegal status transition
  2. Duplicate   - unique-constraint violation (code, email, phone, username)
  3. NotFound    - referenced id absent
  4. Stock       - requested quantity exceeds what is on hand
  5. Access      - role lacks the section, or bad credentials

USAGE:
  if errors.Is(err, generic.ErrDuplicate) {
      var dup *generic.DuplicateError
      errors.As(err, &dup) // dup.Field == "email"
  }

SEE ALSO:
  - validate.go: Converts validator tag failures into ValidationError
  - api/handlers.go: Maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when a unique field collides with an existing record.
	ErrDuplicate = errors.New("duplicate value")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when a sale asks for more units than are on hand.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPermission is returned when the caller's role lacks the section.
	ErrPermission = errors.New("permission denied")

	// ErrInvalidCredentials is returned when login fails for any reason.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidTransition is returned for a service status change the state
	// machine does not allow. It also matches ErrValidation.
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", ErrValidation)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateError provides details about a unique-constraint violation.
type DuplicateError struct {
	Entity string // "inventory item", "customer", "user", "invoice"
	Field  string
	Value  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: only %d available, %d requested", e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PermissionError names the role and the section it tried to use.
type PermissionError struct {
	Role    string
	Section string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %q has no access to %s", e.Role, e.Section)
}

func (e *PermissionError) Unwrap() error { return ErrPermission }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Invalid is shorthand for a field-level ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound is shorthand for a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
