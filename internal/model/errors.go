package model

import (
	"errors"
	"fmt"
)

// ErrRecordCancelled is returned when processing is attempted on a record
// that was cancelled at the issuer side.
var ErrRecordCancelled = errors.New("record is cancelled and cannot be processed")

// ParseError represents parsing errors with dialect context
type ParseError struct {
	Dialect string
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Dialect, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Dialect, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(dialect, field, message string, cause error) *ParseError {
	return &ParseError{
		Dialect: dialect,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// StageError wraps a failure inside a processing stage. The stage name and
// the verbatim cause are retained on the record for operator triage.
type StageError struct {
	Stage ProcessingStatus
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a new stage error
func NewStageError(stage ProcessingStatus, cause error) *StageError {
	return &StageError{Stage: stage, Cause: cause}
}
