package lending

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrNotFound marks a reference to a member, book or loan that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a business-rule violation, such as a second open
	// loan for the same member.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable marks a loan request for a book with no free copy.
	ErrUnavailable = errors.New("unavailable")

	// ErrAlreadyReturned marks a return request on a closed loan.
	ErrAlreadyReturned = errors.New("already returned")

	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError reports which entity could not be found.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RuleError carries a message meant for the person at the desk, tagged
// with one of the error kinds above.
type RuleError struct {
	Kind    error
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

// Conflict builds a RuleError of kind ErrConflict.
func Conflict(message string) error {
	return &RuleError{Kind: ErrConflict, Message: message}
}

// Unavailable builds a RuleError of kind ErrUnavailable.
func Unavailable(message string) error {
	return &RuleError{Kind: ErrUnavailable, Message: message}
}

// AlreadyReturned builds a RuleError of kind ErrAlreadyReturned.
func AlreadyReturned(message string) error {
	return &RuleError{Kind: ErrAlreadyReturned, Message: message}
}

// IsDomain reports whether err is an expected lending outcome whose message
// can be shown to the caller as is.
func IsDomain(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrAlreadyReturned) ||
		errors.Is(err, ErrValidation)
}
