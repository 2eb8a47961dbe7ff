package executomat

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/procstate"
)

// Outcome is what an action reports back after running.
type Outcome struct {
	// Code must be non-negative; 0 means success.
	Code     int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Action is the smallest unit of work in a step.
//
// Implementations may return a *builderr.Error instead of an Outcome; it is
// converted into a failure result carrying the error's exit code.
type Action interface {
	Description() string
	Run(ctx context.Context) (Outcome, error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc struct {
	Desc string
	Fn   func(ctx context.Context) (Outcome, error)
}

// Description returns the action description.
func (a ActionFunc) Description() string {
	return a.Desc
}

// Run calls the wrapped function.
func (a ActionFunc) Run(ctx context.Context) (Outcome, error) {
	return a.Fn(ctx)
}

// ActionOption configures how an action is run within its step.
type ActionOption func(*Record)

// InDir runs the action with dir as the working directory.
func InDir(dir string) ActionOption {
	return func(r *Record) {
		r.workDir = dir
	}
}

// IgnorePreviousFailure runs the action even after an earlier action of the
// same step failed.
func IgnorePreviousFailure() ActionOption {
	return func(r *Record) {
		r.ignorePreviousFailure = true
	}
}

// Record wraps an action registered in a step and keeps its execution
// state.
type Record struct {
	action                Action
	phase                 Phase
	workDir               string
	ignorePreviousFailure bool

	started  bool
	finished bool
	aborted  bool
	skipped  bool
	timedOut bool
	result   int
	stdout   string
	stderr   string
	duration time.Duration
}

func newRecord(action Action, phase Phase, opts []ActionOption) *Record {
	r := &Record{action: action, phase: phase}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Action returns the wrapped action.
func (r *Record) Action() Action { return r.action }

// Description returns the wrapped action's description.
func (r *Record) Description() string { return r.action.Description() }

// Phase returns the step phase the action belongs to.
func (r *Record) Phase() Phase { return r.phase }

// WorkDir returns the working directory override.
func (r *Record) WorkDir() string { return r.workDir }

// IgnoresPreviousFailure reports the action's failure override.
func (r *Record) IgnoresPreviousFailure() bool { return r.ignorePreviousFailure }

// Started reports whether the action was invoked.
func (r *Record) Started() bool { return r.started }

// Finished reports whether the action returned.
func (r *Record) Finished() bool { return r.finished }

// Aborted reports whether the action ended with an error instead of an
// outcome.
func (r *Record) Aborted() bool { return r.aborted }

// Skipped reports whether the action was skipped after a failure.
func (r *Record) Skipped() bool { return r.skipped }

// TimedOut reports whether the action was killed by its timeout.
func (r *Record) TimedOut() bool { return r.timedOut }

// Result returns the action's result code.
func (r *Record) Result() int { return r.result }

// Stdout returns the captured standard output.
func (r *Record) Stdout() string { return r.stdout }

// Stderr returns the captured error output.
func (r *Record) Stderr() string { return r.stderr }

// Duration returns how long the action ran.
func (r *Record) Duration() time.Duration { return r.duration }

func (r *Record) reset() {
	r.started, r.finished, r.aborted, r.skipped, r.timedOut = false, false, false, false, false
	r.result = 0
	r.stdout, r.stderr = "", ""
	r.duration = 0
}

// execute runs the action inside a process state guard. It never panics
// and never returns an error: every failure becomes a non-zero result.
func (r *Record) execute(ctx context.Context) {
	r.started = true
	start := time.Now()
	defer func() {
		r.duration = time.Since(start)
		r.finished = true
	}()

	guard, err := procstate.Acquire(r.workDir)
	if err != nil {
		r.fail(builderr.Wrap(builderr.KindBuild, err, "cannot enter working directory"))
		return
	}
	defer func() {
		if rerr := guard.Release(); rerr != nil {
			r.stderr += fmt.Sprintf("failed to restore process state: %v\n", rerr)
			if r.result == 0 {
				r.result = builderr.ExitFrameworkError
			}
		}
	}()

	outcome, err := r.invoke(ctx)
	r.stdout = outcome.Stdout
	r.stderr = outcome.Stderr
	r.timedOut = outcome.TimedOut
	if err != nil {
		r.fail(err)
		return
	}
	r.result = outcome.Code
	if outcome.Code < 0 {
		r.fail(builderr.Framework("action %q returned negative result %d", r.Description(), outcome.Code))
	}
}

func (r *Record) invoke(ctx context.Context) (outcome Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = builderr.Framework("action %q panicked: %v", r.Description(), p)
		}
	}()
	return r.action.Run(ctx)
}

func (r *Record) fail(err error) {
	r.aborted = true
	r.result = builderr.ExitCode(err)

	var b strings.Builder
	b.WriteString(r.stderr)
	fmt.Fprintf(&b, "%s\n", err)
	var be *builderr.Error
	if errors.As(err, &be) && be.Stack != "" {
		b.WriteString(be.Stack)
	} else {
		b.Write(debug.Stack())
	}
	r.stderr = b.String()
}
