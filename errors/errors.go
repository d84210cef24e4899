package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Component identifies which capability raised the error
type Component string

const (
	ComponentWriter     Component = "writer"
	ComponentAllocator  Component = "allocator"
	ComponentSharing    Component = "sharing"
	ComponentSerializer Component = "serializer"
	ComponentConfig     Component = "config"
)

// Kind categorizes the error
type Kind string

const (
	KindIO                     Kind = "io"
	KindCapacity               Kind = "capacity"
	KindOutOfMemory            Kind = "out_of_memory"
	KindAllocationMismatch     Kind = "allocation_mismatch"
	KindDuplicateSharedPointer Kind = "duplicate_shared_pointer"
	KindCycle                  Kind = "cycle"
	KindInvalidLayout          Kind = "invalid_layout"
	KindOverflow               Kind = "overflow"
	KindConsumed               Kind = "consumed"
	KindConfig                 Kind = "config"
)

// Sentinels for errors.Is. They match on Kind only.
var (
	ErrIO                     = &Error{Kind: KindIO}
	ErrCapacity               = &Error{Kind: KindCapacity}
	ErrOutOfMemory            = &Error{Kind: KindOutOfMemory}
	ErrAllocationMismatch     = &Error{Kind: KindAllocationMismatch}
	ErrDuplicateSharedPointer = &Error{Kind: KindDuplicateSharedPointer}
	ErrCycle                  = &Error{Kind: KindCycle}
	ErrInvalidLayout          = &Error{Kind: KindInvalidLayout}
	ErrOverflow               = &Error{Kind: KindOverflow}
	ErrConsumed               = &Error{Kind: KindConsumed}
	ErrConfig                 = &Error{Kind: KindConfig}
)

// Error is the structured error returned by every capability
type Error struct {
	Cause     error
	Value     any
	Component Component
	Kind      Kind
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Component != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Component))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. A target with a
// component set must also match the component.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Component != "" && t.Component != e.Component {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(component Component, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Component: component,
			Kind:      kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Cause sets the underlying error. The cause is annotated with a stack trace
// if it does not carry one already.
func (b *Builder) Cause(err error) *Builder {
	var traced stackTracer
	if err != nil && !stderrors.As(err, &traced) {
		err = pkgerrors.WithStack(err)
	}
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// OutOfMemory creates an allocation failure error
func OutOfMemory(component Component, size, align, available int) *Error {
	return &Error{
		Component: component,
		Kind:      KindOutOfMemory,
		Detail:    fmt.Sprintf("cannot allocate %d bytes (align %d), %d available", size, align, available),
	}
}

// AllocationMismatch creates a stack discipline violation error
func AllocationMismatch(component Component, detail string, args ...any) *Error {
	return &Error{
		Component: component,
		Kind:      KindAllocationMismatch,
		Detail:    fmt.Sprintf(detail, args...),
	}
}

// DuplicateSharedPointer creates a conflicting record error
func DuplicateSharedPointer(address uintptr, existing, pos int) *Error {
	return &Error{
		Component: ComponentSharing,
		Kind:      KindDuplicateSharedPointer,
		Detail:    fmt.Sprintf("address %#x already recorded at position %d, got %d", address, existing, pos),
		Value:     address,
	}
}

// Capacity creates a sink capacity error
func Capacity(need, available int) *Error {
	return &Error{
		Component: ComponentWriter,
		Kind:      KindCapacity,
		Detail:    fmt.Sprintf("cannot write %d bytes, %d available", need, available),
	}
}

// IO wraps a sink failure
func IO(cause error, detail string) *Error {
	return New(ComponentWriter, KindIO).Cause(cause).Detail(detail).Build()
}

// Consumed reports a call on a serializer whose parts were already taken
func Consumed(op string) *Error {
	return &Error{
		Component: ComponentSerializer,
		Kind:      KindConsumed,
		Detail:    op + " called after the serializer was consumed",
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err signals a broken usage contract rather than a
// data or environment failure. Fatal errors should not be retried.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindAllocationMismatch, KindDuplicateSharedPointer, KindConsumed:
		return true
	default:
		return false
	}
}
