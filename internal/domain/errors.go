// Package domain defines the entity model, persisted documents, ports and
// errors shared by the DisMAP ingestion pipeline.
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// MissingResourceError indicates a required store, file, entity or control
// table row is absent. Cause optionally holds the underlying driver error.
type MissingResourceError struct {
	Message string
	Cause   error
	stack   errors.StackTrace
}

func (e *MissingResourceError) Error() string { return e.Message }

func (e *MissingResourceError) Unwrap() error { return e.Cause }

// StackTrace returns the frames above the constructor, or nil for literals.
func (e *MissingResourceError) StackTrace() errors.StackTrace { return e.stack }

// ValidationError indicates invalid input or configuration.
type ValidationError struct {
	Message string
	Cause   error
	stack   errors.StackTrace
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Cause }

func (e *ValidationError) StackTrace() errors.StackTrace { return e.stack }

// TypeCoercionError indicates a flat-file value could not be cast to the
// native type of its target field. The original parse error is kept as Cause.
type TypeCoercionError struct {
	Entity string
	Field  string
	Row    int // 1-based data row, header excluded
	Value  string
	Type   FieldType
	Cause  error
	stack  errors.StackTrace
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("coerce %s.%s row %d value %q to %s: %v",
		e.Entity, e.Field, e.Row, e.Value, e.Type, e.Cause)
}

func (e *TypeCoercionError) Unwrap() error { return e.Cause }

func (e *TypeCoercionError) StackTrace() errors.StackTrace { return e.stack }

// NewTypeCoercionError records a failed cast together with the caller's stack.
func NewTypeCoercionError(entity, field string, row int, value string, ft FieldType, cause error) *TypeCoercionError {
	return &TypeCoercionError{
		Entity: entity,
		Field:  field,
		Row:    row,
		Value:  value,
		Type:   ft,
		Cause:  cause,
		stack:  callers(),
	}
}

// PartialWriteError reports that a load aborted after creating a staging
// entity. The staging entity is not cleaned up automatically.
type PartialWriteError struct {
	Staging string
	Cause   error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("load aborted, staging entity %q left behind: %v", e.Staging, e.Cause)
}

func (e *PartialWriteError) Unwrap() error { return e.Cause }

// ErrMissingResource creates a MissingResourceError with a formatted message.
func ErrMissingResource(format string, args ...interface{}) *MissingResourceError {
	return &MissingResourceError{Message: fmt.Sprintf(format, args...), stack: callers()}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), stack: callers()}
}

// callers returns the stack starting at the caller of the constructor that
// invoked it.
func callers() errors.StackTrace {
	st := errors.New("").(stackTracer).StackTrace()
	// st[0] is callers, st[1] the constructor.
	if len(st) < 3 {
		return nil
	}
	return st[2:]
}

// OpError is the fatal error surfaced to the operator. It names the
// originating function and the line the failure was observed at.
type OpError struct {
	Op       string
	Function string
	Line     string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v (in %s at %s)", e.Op, e.Err, e.Function, e.Line)
}

func (e *OpError) Unwrap() error { return e.Err }

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NewOpError wraps err with the function name and file:line where it was
// raised: the innermost error in the chain carrying a stack trace, falling back
// to the caller of NewOpError. A nil err yields nil.
func NewOpError(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	out := &OpError{Op: op, Err: err, Function: "unknown", Line: "unknown"}
	frames := originFrames(err)
	if len(frames) == 0 {
		// frames[0] is NewOpError itself.
		if all := errors.WithStack(err).(stackTracer).StackTrace(); len(all) > 1 {
			frames = all[1:]
		}
	}
	if len(frames) > 0 {
		f := frames[0]
		out.Function = fmt.Sprintf("%n", f)
		out.Line = fmt.Sprintf("%s:%d", f, f)
	}
	return out
}

// originFrames walks the Unwrap chain and returns the deepest non-empty
// stack trace.
func originFrames(err error) errors.StackTrace {
	var frames errors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			if t := st.StackTrace(); len(t) > 0 {
				frames = t
			}
		}
	}
	return frames
}
