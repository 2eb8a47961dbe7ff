package executomat

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// StepOption configures a step.
type StepOption func(*Step)

// Disabled creates the step in disabled state.
func Disabled() StepOption {
	return func(s *Step) {
		s.enabled = false
	}
}

// RunAfterFailure lets the step run even after an earlier failure.
func RunAfterFailure() StepOption {
	return func(s *Step) {
		s.ignorePreviousFailure = true
	}
}

// Step is a named group of pre, main and post actions.
type Step struct {
	name                  string
	enabled               bool
	ignorePreviousFailure bool
	actions               [3][]*Record

	lifecycle *lifecycle
	result    StepResult
	logFile   string
	startedAt time.Time
	stoppedAt time.Time
}

// NewStep creates an enabled step without actions.
func NewStep(name string, opts ...StepOption) *Step {
	s := &Step{
		name:    name,
		enabled: true,
		result:  ResultNotExecuted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *Step) Name() string { return s.name }

// Enabled reports whether the step will run.
func (s *Step) Enabled() bool { return s.enabled }

// SetEnabled enables or disables the step.
func (s *Step) SetEnabled(enabled bool) { s.enabled = enabled }

// IgnoresPreviousFailure reports whether the step runs after failures.
func (s *Step) IgnoresPreviousFailure() bool { return s.ignorePreviousFailure }

// SetIgnorePreviousFailure sets the failure override.
func (s *Step) SetIgnorePreviousFailure(ignore bool) { s.ignorePreviousFailure = ignore }

// Status returns the lifecycle status.
func (s *Step) Status() StepStatus {
	if s.lifecycle == nil {
		return StatusNew
	}
	return s.lifecycle.status()
}

// Result returns the step result.
func (s *Step) Result() StepResult { return s.result }

// Failed reports whether the step result is a failure.
func (s *Step) Failed() bool { return s.result == ResultFailure }

// LogFile returns the path of the step log, empty if none was written.
func (s *Step) LogFile() string { return s.logFile }

// StartedAt returns when the step started.
func (s *Step) StartedAt() time.Time { return s.startedAt }

// StoppedAt returns when the step finished.
func (s *Step) StoppedAt() time.Time { return s.stoppedAt }

// AddAction appends an action to the given phase.
func (s *Step) AddAction(phase Phase, action Action, opts ...ActionOption) (*Record, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	r := newRecord(action, phase, opts)
	s.actions[phase] = append(s.actions[phase], r)
	return r, nil
}

// PrependAction inserts an action at the front of the given phase.
func (s *Step) PrependAction(phase Phase, action Action, opts ...ActionOption) (*Record, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	r := newRecord(action, phase, opts)
	s.actions[phase] = append([]*Record{r}, s.actions[phase]...)
	return r, nil
}

// Actions returns the records of one phase.
func (s *Step) Actions(phase Phase) []*Record {
	out := make([]*Record, len(s.actions[phase]))
	copy(out, s.actions[phase])
	return out
}

// AllActions returns the records of all phases in execution order.
func (s *Step) AllActions() []*Record {
	out := make([]*Record, 0)
	for _, p := range phases {
		out = append(out, s.actions[p]...)
	}
	return out
}

// HasActions reports whether any phase holds an action.
func (s *Step) HasActions() bool {
	for _, p := range phases {
		if len(s.actions[p]) > 0 {
			return true
		}
	}
	return false
}

func (s *Step) transition(event string, want StepStatus) error {
	if s.lifecycle == nil {
		l, err := newLifecycle()
		if err != nil {
			return builderr.Wrap(builderr.KindFramework, err, "step "+s.name)
		}
		s.lifecycle = l
	}
	if err := s.lifecycle.fire(event, want); err != nil {
		return builderr.Wrap(builderr.KindFramework, err, "step "+s.name)
	}
	return nil
}

// reset returns an already executed step to the new status.
func (s *Step) reset() error {
	if s.Status() == StatusNew {
		return nil
	}
	if err := s.transition(eventReset, StatusNew); err != nil {
		return err
	}
	s.result = ResultNotExecuted
	s.logFile = ""
	s.startedAt, s.stoppedAt = time.Time{}, time.Time{}
	for _, r := range s.AllActions() {
		r.reset()
	}
	return nil
}

// execute runs the step. mayRun is the caller's verdict on whether earlier
// failures allow this step to run. The only returned errors are lifecycle
// violations and interruption.
func (s *Step) execute(ctx context.Context, mayRun bool) error {
	if err := s.reset(); err != nil {
		return err
	}

	if !s.enabled {
		ports.Log(ctx, ports.LevelDebug, "step disabled", ports.F("step", s.name))
		return s.transition(eventSkipDisabled, StatusSkippedDisabled)
	}
	if !mayRun && !s.ignorePreviousFailure {
		ports.Log(ctx, ports.LevelDebug, "step skipped after previous error", ports.F("step", s.name))
		return s.transition(eventSkipFailure, StatusSkippedPreviousError)
	}

	if err := s.transition(eventStart, StatusStarted); err != nil {
		return err
	}
	s.startedAt = time.Now()
	s.result = ResultSuccess

	var interrupted error
	for _, p := range phases {
		for _, r := range s.actions[p] {
			if interrupted != nil || (s.result == ResultFailure && !r.ignorePreviousFailure) {
				r.skipped = true
				continue
			}
			ports.Log(ctx, ports.LevelDebug, "running action",
				ports.F("step", s.name), ports.F("phase", p.String()), ports.F("action", r.Description()))
			r.execute(ctx)
			if r.result != 0 {
				s.result = ResultFailure
				ports.Log(ctx, ports.LevelWarn, "action failed",
					ports.F("step", s.name), ports.F("action", r.Description()), ports.F("result", r.result))
			}
			if ctx.Err() != nil {
				interrupted = builderr.Interrupted(ctx.Err())
				s.result = ResultFailure
			}
		}
	}

	s.stoppedAt = time.Now()
	if err := s.transition(eventFinish, StatusFinished); err != nil {
		return err
	}
	return interrupted
}

func (s *Step) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.name, s.Status(), s.result)
}
