package executomat

// State identifiers of the step lifecycle machine.
const (
	stateNew                  = "new"
	stateSkippedDisabled      = "skipped-disabled"
	stateStarted              = "started"
	stateFinished             = "finished"
	stateSkippedPreviousError = "skipped-previous-error"
)

// StepStatus is the lifecycle position of a step.
type StepStatus string

const (
	// StatusNew is the status of a step that has not been run.
	StatusNew StepStatus = stateNew
	// StatusSkippedDisabled marks a disabled step that was passed over.
	StatusSkippedDisabled StepStatus = stateSkippedDisabled
	// StatusStarted marks a step whose actions are running.
	StatusStarted StepStatus = stateStarted
	// StatusFinished marks a step whose actions have all been processed.
	StatusFinished StepStatus = stateFinished
	// StatusSkippedPreviousError marks a step skipped because of an
	// earlier failure.
	StatusSkippedPreviousError StepStatus = stateSkippedPreviousError
)

// String returns the string representation of the status.
func (s StepStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the step will not change anymore.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusSkippedDisabled, StatusFinished, StatusSkippedPreviousError:
		return true
	case StatusNew, StatusStarted:
		return false
	}
	return false
}

// StepResult is the outcome of a step.
type StepResult string

const (
	// ResultNotExecuted is the result of a step whose actions never ran.
	ResultNotExecuted StepResult = "not-executed"
	// ResultSuccess means every executed action returned 0.
	ResultSuccess StepResult = "success"
	// ResultFailure means at least one action returned non-zero.
	ResultFailure StepResult = "failure"
)

// String returns the string representation of the result.
func (r StepResult) String() string {
	return string(r)
}

// Phase selects one of the three action lists of a step.
type Phase int

const (
	// PhasePre actions run before the main actions.
	PhasePre Phase = iota
	// PhaseMain holds the step's primary actions.
	PhaseMain
	// PhasePost actions run after the main actions.
	PhasePost
)

var phases = []Phase{PhasePre, PhaseMain, PhasePost}

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseMain:
		return "main"
	case PhasePost:
		return "post"
	default:
		return "unknown"
	}
}
