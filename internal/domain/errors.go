package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no processed receipt exists for an id.
	ErrNotFound = errors.New("receipt not found")

	// ErrInternal marks a defect in the scoring pipeline. It is never a
	// validation or lookup outcome.
	ErrInternal = errors.New("internal error")
)

// ValidationKind classifies why a receipt was rejected.
type ValidationKind string

const (
	// KindSchemaMismatch means a field is missing, has the wrong type,
	// or fails its pattern or arity constraint.
	KindSchemaMismatch ValidationKind = "schema_mismatch"

	// KindInvalidMoney means a money field is unparsable, non-positive or out of range.
	KindInvalidMoney ValidationKind = "invalid_money"
)

// ValidationError reports the first offending field of a rejected receipt.
type ValidationError struct {
	Kind   ValidationKind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
}

// SchemaMismatch builds a ValidationError of kind KindSchemaMismatch.
func SchemaMismatch(field, reason string) *ValidationError {
	return &ValidationError{Kind: KindSchemaMismatch, Field: field, Reason: reason}
}

// InvalidMoney builds a ValidationError of kind KindInvalidMoney.
func InvalidMoney(field, reason string) *ValidationError {
	return &ValidationError{Kind: KindInvalidMoney, Field: field, Reason: reason}
}

// NotFoundError carries the id that was looked up.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("receipt %s not found", e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InternalError wraps a rule that failed, panicked or returned a negative score.
type InternalError struct {
	Rule RuleDescriptor
	Err  error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("rule %q v%d: %v", e.Rule.Name, e.Rule.Version, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInternal) hold.
func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}
