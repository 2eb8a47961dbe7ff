package executomat

import "time"

// ActionReport is an immutable view of one executed action.
type ActionReport struct {
	Description string
	Phase       Phase
	Started     bool
	Skipped     bool
	Aborted     bool
	TimedOut    bool
	Result      int
	Duration    time.Duration
	Stdout      string
	Stderr      string
}

// StepReport is an immutable view of one step.
type StepReport struct {
	Name      string
	Enabled   bool
	Status    StepStatus
	Result    StepResult
	LogFile   string
	StartedAt time.Time
	StoppedAt time.Time
	Actions   []ActionReport
}

// Report summarizes an Executomat after running.
type Report struct {
	Name       string
	Result     StepResult
	FailedStep string
	Steps      []StepReport
}

// Success reports whether no step failed.
func (r Report) Success() bool {
	return r.Result != ResultFailure
}

// Report builds a summary of the current state. A run in which nothing
// failed, including one where every step was skipped, reports success.
func (e *Executomat) Report() Report {
	rep := Report{
		Name:   e.name,
		Result: ResultSuccess,
		Steps:  make([]StepReport, 0, len(e.steps)),
	}
	if e.HasFailed() {
		rep.Result = ResultFailure
	}
	if e.failed != nil {
		rep.FailedStep = e.failed.Name()
	}

	for _, s := range e.steps {
		sr := StepReport{
			Name:      s.Name(),
			Enabled:   s.Enabled(),
			Status:    s.Status(),
			Result:    s.Result(),
			LogFile:   s.LogFile(),
			StartedAt: s.StartedAt(),
			StoppedAt: s.StoppedAt(),
			Actions:   make([]ActionReport, 0),
		}
		for _, r := range s.AllActions() {
			sr.Actions = append(sr.Actions, ActionReport{
				Description: r.Description(),
				Phase:       r.Phase(),
				Started:     r.Started(),
				Skipped:     r.Skipped(),
				Aborted:     r.Aborted(),
				TimedOut:    r.TimedOut(),
				Result:      r.Result(),
				Duration:    r.Duration(),
				Stdout:      r.Stdout(),
				Stderr:      r.Stderr(),
			})
		}
		rep.Steps = append(rep.Steps, sr)
	}
	return rep
}
