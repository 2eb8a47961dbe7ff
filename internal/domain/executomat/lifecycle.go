package executomat

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Events driving the step lifecycle machine.
const (
	eventSkipDisabled = "SKIP_DISABLED"
	eventSkipFailure  = "SKIP_PREVIOUS_ERROR"
	eventStart        = "START"
	eventFinish       = "FINISH"
	eventReset        = "RESET"
)

type lifecycleContext struct{}

// lifecycle enforces the legal step status transitions:
//
//	new -> skipped-disabled | skipped-previous-error | started
//	started -> finished
//	any terminal status -> new (reset before a rerun)
type lifecycle struct {
	interp *statekit.Interpreter[lifecycleContext]
}

func newLifecycle() (*lifecycle, error) {
	machine, err := statekit.NewMachine[lifecycleContext]("step-lifecycle").
		WithInitial(stateNew).
		WithContext(lifecycleContext{}).
		State(stateNew).
		On(eventSkipDisabled).Target(stateSkippedDisabled).
		On(eventSkipFailure).Target(stateSkippedPreviousError).
		On(eventStart).Target(stateStarted).Done().
		State(stateStarted).
		On(eventFinish).Target(stateFinished).Done().
		State(stateFinished).
		On(eventReset).Target(stateNew).Done().
		State(stateSkippedDisabled).
		On(eventReset).Target(stateNew).Done().
		State(stateSkippedPreviousError).
		On(eventReset).Target(stateNew).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build step lifecycle: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &lifecycle{interp: interp}, nil
}

func (l *lifecycle) status() StepStatus {
	return StepStatus(l.interp.State().Value)
}

// fire sends the event and verifies the machine reached want.
func (l *lifecycle) fire(event string, want StepStatus) error {
	from := l.status()
	l.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	if got := l.status(); got != want {
		return fmt.Errorf("illegal step transition %s on %s (now %s)", from, event, got)
	}
	return nil
}
