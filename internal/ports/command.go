// Package ports defines interfaces for external dependencies of the build
// engine.
package ports

import (
	"context"
	"time"
)

// ExitTimedOut is the exit code reported for a command that was killed
// after exceeding its timeout.
const ExitTimedOut = 124

// CommandRequest describes one external command invocation.
type CommandRequest struct {
	Command string
	Args    []string
	// SearchPaths are consulted before PATH when resolving Command.
	SearchPaths []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds additional KEY=VALUE pairs on top of the process environment.
	Env []string
	// Timeout kills the command after the given duration. Zero disables it.
	Timeout time.Duration
	// CombineOutput writes stderr into Stdout, preserving interleaving.
	CombineOutput bool
}

// CommandResult represents the result of executing a command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Success returns true if the command exited with code 0 in time.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// CommandRunner executes external commands.
//
// A command that starts and exits non-zero is not an error: the exit code is
// reported in the result. Errors are reserved for commands that could not be
// started at all.
type CommandRunner interface {
	Run(ctx context.Context, req CommandRequest) (CommandResult, error)
}
