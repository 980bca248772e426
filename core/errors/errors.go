// Package errors provides the error taxonomy shared by the citesync packages.
//
// Three families matter to callers:
//   - precondition errors: the environment is not ready (no view cursor, no document).
//     They are recoverable and carry a remedy the user can act on.
//   - corruption errors: the external document no longer holds what we put there.
//     They abort the operation in progress.
//   - invariant errors: programming errors inside the registry. They should never
//     reach end users.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrPrecondition indicates an environmental precondition is not met
	ErrPrecondition = errors.New("precondition failed")
	// ErrCorrupted indicates the document was changed in a way we cannot repair
	ErrCorrupted = errors.New("document corrupted")
	// ErrInvariant indicates an internal consistency check failed
	ErrInvariant = errors.New("invariant violated")
	// ErrOverlap indicates overlapping or touching citation anchors
	ErrOverlap = errors.New("overlapping citations")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "citation group", "anchor", "entry")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "mark name", "XML", "group record")
	Path    string // File path or property name, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// PreconditionError reports an environment that is not ready for the
// requested operation. Remedy is phrased for the end user.
type PreconditionError struct {
	Condition string // What was missing (e.g., "view cursor")
	Remedy    string // What the user should do
	Err       error  // Underlying error, if any
}

func (e *PreconditionError) Error() string {
	if e.Remedy != "" {
		return fmt.Sprintf("%s unavailable: %s", e.Condition, e.Remedy)
	}
	return fmt.Sprintf("%s unavailable", e.Condition)
}

func (e *PreconditionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrPrecondition
}

// CorruptionError reports an anchor whose document content no longer
// satisfies what the storage layer relies on.
type CorruptionError struct {
	Anchor string // Anchor name
	Reason string // What is wrong with it
	Err    error  // Underlying error, if any
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("anchor %s is corrupted: %s", e.Anchor, e.Reason)
}

func (e *CorruptionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCorrupted
}

// InvariantError reports a violated internal invariant. These are defects,
// not user errors.
type InvariantError struct {
	Operation string // Operation that detected the violation
	Detail    string // Precise diagnostic
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", e.Operation, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// OverlapError carries the human-readable overlap reports found by a check.
type OverlapError struct {
	Reports []string
}

func (e *OverlapError) Error() string {
	if len(e.Reports) == 1 {
		return "found overlapping or touching citations: " + e.Reports[0]
	}
	return "found overlapping or touching citations:\n  " + strings.Join(e.Reports, "\n  ")
}

func (e *OverlapError) Unwrap() error {
	return ErrOverlap
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewPrecondition creates a PreconditionError
func NewPrecondition(condition, remedy string) *PreconditionError {
	return &PreconditionError{
		Condition: condition,
		Remedy:    remedy,
	}
}

// NewCorruption creates a CorruptionError
func NewCorruption(anchor, reason string) *CorruptionError {
	return &CorruptionError{
		Anchor: anchor,
		Reason: reason,
	}
}

// NewInvariant creates an InvariantError with a formatted detail message
func NewInvariant(operation, format string, args ...interface{}) *InvariantError {
	return &InvariantError{
		Operation: operation,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// UserMessage translates precondition and corruption errors into the
// plain-language text shown to users. Other errors are returned verbatim.
func UserMessage(err error) string {
	var pre *PreconditionError
	if errors.As(err, &pre) {
		if pre.Remedy != "" {
			return pre.Remedy
		}
		return pre.Error()
	}
	var corrupt *CorruptionError
	if errors.As(err, &corrupt) {
		return fmt.Sprintf("The citation marker %q was damaged by an edit. "+
			"Remove the citation and insert it again, or reopen the document.", corrupt.Anchor)
	}
	return err.Error()
}
