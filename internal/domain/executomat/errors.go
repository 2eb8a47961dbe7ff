package executomat

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrNilStep indicates a nil step was provided.
	ErrNilStep = errors.New("step cannot be nil")
	// ErrEmptyStepName indicates a step name was empty.
	ErrEmptyStepName = errors.New("step name cannot be empty")
	// ErrNilAction indicates a nil action was provided.
	ErrNilAction = errors.New("action cannot be nil")
)

// StepExistsError indicates a step name is already registered.
type StepExistsError struct {
	Executomat string
	Name       string
}

func (e *StepExistsError) Error() string {
	return fmt.Sprintf("step %q already exists in %s", e.Name, e.Executomat)
}

// ErrorKind classifies the error as a configuration error.
func (e *StepExistsError) ErrorKind() builderr.Kind {
	return builderr.KindConfiguration
}

// StepNotFoundError indicates a lookup for an unknown step.
type StepNotFoundError struct {
	Executomat string
	Name       string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("no such step %q in %s", e.Name, e.Executomat)
}

// ErrorKind classifies the error as a configuration error.
func (e *StepNotFoundError) ErrorKind() builderr.Kind {
	return builderr.KindConfiguration
}
