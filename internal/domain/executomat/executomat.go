// Package executomat runs the named, ordered steps owned by one node of the
// build tree. Each step consists of pre, main and post actions; a failing
// action fails its step and causes the remaining actions of the step to be
// skipped unless they ignore previous failures.
package executomat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Gate decides, at the time a step is about to run, whether earlier
// failures still allow it to run.
type Gate func() bool

// Option configures an Executomat.
type Option func(*Executomat)

// WithFileSystem sets the file system used for step logs.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(e *Executomat) {
		e.fs = fs
	}
}

// WithLogDir sets the directory step logs are written to.
func WithLogDir(dir string) Option {
	return func(e *Executomat) {
		e.logDir = dir
	}
}

// WithGate replaces the default gate, which only looks at the steps of
// this Executomat.
func WithGate(gate Gate) Option {
	return func(e *Executomat) {
		e.gate = gate
	}
}

// Executomat is an ordered, name-keyed collection of steps.
type Executomat struct {
	name   string
	steps  []*Step
	index  map[string]*Step
	logDir string
	fs     ports.FileSystem
	gate   Gate
	failed *Step
}

// New creates an empty Executomat.
func New(name string, opts ...Option) *Executomat {
	e := &Executomat{
		name:  name,
		steps: make([]*Step, 0),
		index: make(map[string]*Step),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the Executomat name.
func (e *Executomat) Name() string { return e.name }

// LogDir returns the log directory.
func (e *Executomat) LogDir() string { return e.logDir }

// SetLogDir sets the log directory.
func (e *Executomat) SetLogDir(dir string) { e.logDir = dir }

// SetFileSystem sets the file system used for step logs.
func (e *Executomat) SetFileSystem(fs ports.FileSystem) { e.fs = fs }

// SetGate replaces the gate.
func (e *Executomat) SetGate(gate Gate) { e.gate = gate }

// AddStep appends a step. Registration order is execution order.
func (e *Executomat) AddStep(step *Step) error {
	if step == nil {
		return ErrNilStep
	}
	if step.Name() == "" {
		return ErrEmptyStepName
	}
	if _, exists := e.index[step.Name()]; exists {
		return &StepExistsError{Executomat: e.name, Name: step.Name()}
	}
	e.steps = append(e.steps, step)
	e.index[step.Name()] = step
	return nil
}

// Step returns the named step.
func (e *Executomat) Step(name string) (*Step, error) {
	step, ok := e.index[name]
	if !ok {
		return nil, &StepNotFoundError{Executomat: e.name, Name: name}
	}
	return step, nil
}

// HasStep reports whether a step is registered.
func (e *Executomat) HasStep(name string) bool {
	_, ok := e.index[name]
	return ok
}

// Steps returns the steps in execution order.
func (e *Executomat) Steps() []*Step {
	out := make([]*Step, len(e.steps))
	copy(out, e.steps)
	return out
}

// HasFailed reports whether any step failed.
func (e *Executomat) HasFailed() bool {
	for _, s := range e.steps {
		if s.Failed() {
			return true
		}
	}
	return false
}

// FailedStep returns the first step that failed, or nil.
func (e *Executomat) FailedStep() *Step {
	return e.failed
}

// Run executes all steps in registration order.
func (e *Executomat) Run(ctx context.Context) error {
	for _, step := range e.steps {
		if err := e.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// RunStep executes a single named step. Executing a step that is not
// registered is a no-op, so a tree can be walked step by step even when
// some nodes lack a step.
func (e *Executomat) RunStep(ctx context.Context, name string) error {
	step, ok := e.index[name]
	if !ok {
		return nil
	}
	return e.runStep(ctx, step)
}

func (e *Executomat) runStep(ctx context.Context, step *Step) error {
	mayRun := e.mayRun()
	err := step.execute(ctx, mayRun)

	if step.Failed() && e.failed == nil {
		e.failed = step
	}
	if step.Status() == StatusFinished && step.HasActions() {
		if lerr := e.writeLog(step); lerr != nil {
			ports.Log(ctx, ports.LevelWarn, "failed to write step log",
				ports.F("step", step.Name()), ports.F("error", lerr))
		}
	}
	return err
}

func (e *Executomat) mayRun() bool {
	if e.gate != nil {
		return e.gate()
	}
	return !e.HasFailed()
}

// LogFileName returns the log file path for a step name.
func (e *Executomat) LogFileName(step string) string {
	return filepath.Join(e.logDir, ports.SafeName(step)+".log")
}

func (e *Executomat) writeLog(step *Step) error {
	if e.logDir == "" || e.fs == nil {
		return nil
	}
	if err := e.fs.MkdirAll(e.logDir, 0o755); err != nil {
		return err
	}

	var b strings.Builder
	for _, r := range step.AllActions() {
		fmt.Fprintf(&b, "==> %s [%s]", r.Description(), r.Phase())
		switch {
		case r.Skipped():
			b.WriteString(" skipped\n")
			continue
		case r.TimedOut():
			fmt.Fprintf(&b, " timed out after %s\n", r.Duration().Round(time.Millisecond))
		default:
			fmt.Fprintf(&b, " result %d in %s\n", r.Result(), r.Duration().Round(time.Millisecond))
		}
		if r.Stdout() == "" && r.Stderr() == "" {
			fmt.Fprintf(&b, "(The action \"%s\" did not generate any output.)\n", r.Description())
			continue
		}
		writeBlock(&b, r.Stdout())
		writeBlock(&b, r.Stderr())
	}

	path := e.LogFileName(step.Name())
	if err := e.fs.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return err
	}
	step.logFile = path
	return nil
}

func writeBlock(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
}
