// Package builderr defines the error taxonomy of a build run and maps it to
// process exit codes.
package builderr

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Process exit codes.
const (
	ExitSuccess            = 0
	ExitBuildError         = 1
	ExitConfigurationError = 2
	ExitFrameworkError     = 3
	// ExitInterrupted is 128 + SIGINT.
	ExitInterrupted = 130
)

// Kind classifies who is responsible for a failure.
type Kind int

const (
	// KindBuild means the project being built failed.
	KindBuild Kind = iota + 1
	// KindConfiguration means the build environment or setup is wrong.
	KindConfiguration
	// KindFramework means an internal error in the engine.
	KindFramework
	// KindInterrupted means the operator cancelled the run.
	KindInterrupted
)

// String returns the human readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBuild:
		return "build error"
	case KindConfiguration:
		return "configuration error"
	case KindFramework:
		return "framework error"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown error"
	}
}

// ExitCode returns the process exit code for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindBuild:
		return ExitBuildError
	case KindConfiguration:
		return ExitConfigurationError
	case KindInterrupted:
		return ExitInterrupted
	default:
		return ExitFrameworkError
	}
}

// Error is a classified build failure.
type Error struct {
	Kind       Kind   // Who is responsible
	Message    string // Short description
	Details    string // Optional multi-line explanation
	Phase      string // Lifecycle phase the error surfaced in, if known
	Stack      string // Stack trace captured at construction
	Underlying error  // Wrapped cause
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// ExitCode returns the exit code for the error's kind.
func (e *Error) ExitCode() int {
	return e.Kind.ExitCode()
}

// Format returns the error with kind, phase and details.
func (e *Error) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Error())
	if e.Phase != "" {
		fmt.Fprintf(&b, "\n  Phase: %s", e.Phase)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, "\n  Details: %s", e.Details)
	}
	return b.String()
}

// WithDetails returns a copy of the error with details set.
func (e *Error) WithDetails(details string) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithPhase returns a copy of the error with the phase set.
func (e *Error) WithPhase(phase string) *Error {
	c := *e
	c.Phase = phase
	return &c
}

// New creates an Error of the given kind and captures the current stack.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Stack:   string(debug.Stack()),
	}
}

// Wrap creates an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *Error {
	e := New(kind, message)
	e.Underlying = err
	return e
}

// Annotate wraps err with message, keeping the kind err classifies as.
func Annotate(err error, message string) *Error {
	return Wrap(KindOf(err), err, message)
}

// Build creates a build error.
func Build(format string, args ...any) *Error {
	return New(KindBuild, fmt.Sprintf(format, args...))
}

// Configuration creates a configuration error.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, fmt.Sprintf(format, args...))
}

// Framework creates a framework error.
func Framework(format string, args ...any) *Error {
	return New(KindFramework, fmt.Sprintf(format, args...))
}

// Interrupted creates an interrupted error wrapping the cancellation cause.
func Interrupted(cause error) *Error {
	return Wrap(KindInterrupted, cause, "build interrupted")
}

// Classified is implemented by domain errors that carry a kind without
// being an *Error.
type Classified interface {
	error
	ErrorKind() Kind
}

// KindOf classifies an arbitrary error. Context cancellation counts as an
// interruption; unclassified errors are framework errors. A nil error has
// kind 0.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	var ce Classified
	if errors.As(err, &ce) {
		return ce.ErrorKind()
	}
	if errors.Is(err, context.Canceled) {
		return KindInterrupted
	}
	return KindFramework
}

// ExitCode maps an error to the process exit code, 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	return KindOf(err).ExitCode()
}

// IsConfiguration reports whether err is classified as a configuration error.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}
