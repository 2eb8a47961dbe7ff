// Package command provides the external command adapter used by build
// actions.
package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// DefaultKillGrace is how long a timed out command may take to exit after
// being asked to terminate before it is killed.
const DefaultKillGrace = 500 * time.Millisecond

// RealRunner executes actual commands.
type RealRunner struct {
	killGrace time.Duration
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{killGrace: DefaultKillGrace}
}

// WithKillGrace returns a copy of the runner using the given grace period.
func (r *RealRunner) WithKillGrace(d time.Duration) *RealRunner {
	return &RealRunner{killGrace: d}
}

// Run starts the command and waits for it. The wait happens on a separate
// goroutine so that the caller can give up after req.Timeout, in which case
// the command's process group is terminated and the result is marked as
// timed out. Cancelling ctx terminates the command the same way and returns
// ctx.Err().
func (r *RealRunner) Run(ctx context.Context, req ports.CommandRequest) (ports.CommandResult, error) {
	name := req.Command
	if len(req.SearchPaths) > 0 {
		resolved, err := Resolve(req.Command, req.SearchPaths)
		if err != nil {
			return ports.CommandResult{ExitCode: -1}, err
		}
		name = resolved
	}

	cmd := exec.Command(name, req.Args...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if req.CombineOutput {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ports.CommandResult{ExitCode: -1}, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	result := ports.CommandResult{}
	var waitErr error
	select {
	case waitErr = <-done:
	case <-timeout:
		result.TimedOut = true
		waitErr = r.terminate(cmd, done)
	case <-ctx.Done():
		_ = r.terminate(cmd, done)
		result.ExitCode = -1
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		result.Duration = time.Since(start)
		return result, ctx.Err()
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.Duration = time.Since(start)

	switch {
	case result.TimedOut:
		result.ExitCode = ports.ExitTimedOut
	case waitErr != nil:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			result.ExitCode = -1
			return result, waitErr
		}
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			// terminated by a signal
			result.ExitCode = 1
		}
	}

	return result, nil
}

// terminate asks the process group to stop, waits up to the grace period,
// then kills it.
func (r *RealRunner) terminate(cmd *exec.Cmd, done <-chan error) error {
	terminateProcess(cmd)
	select {
	case err := <-done:
		return err
	case <-time.After(r.killGrace):
	}
	killProcess(cmd)
	return <-done
}

var _ ports.CommandRunner = (*RealRunner)(nil)
