// Package actions provides the built-in executomat actions: external
// commands, shell scripts, folder creation and removal, and callbacks.
package actions

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Command runs an external command in the current working directory.
// Standard error is merged into the captured output.
type Command struct {
	runner      ports.CommandRunner
	name        string
	args        []string
	searchPaths []string
	env         []string
	timeout     time.Duration
	description string
}

// NewCommand creates a Command action.
func NewCommand(runner ports.CommandRunner, name string, args ...string) *Command {
	return &Command{runner: runner, name: name, args: args}
}

// NewShell creates a Command action that runs script through the platform
// shell.
func NewShell(runner ports.CommandRunner, script string) *Command {
	var c *Command
	if runtime.GOOS == "windows" {
		c = NewCommand(runner, "cmd", "/C", script)
	} else {
		c = NewCommand(runner, "sh", "-c", script)
	}
	c.description = script
	return c
}

// WithTimeout kills the command after d. Zero disables the timeout.
func (c *Command) WithTimeout(d time.Duration) *Command {
	c.timeout = d
	return c
}

// WithSearchPaths adds directories to look for the executable in before
// PATH.
func (c *Command) WithSearchPaths(paths ...string) *Command {
	c.searchPaths = append(c.searchPaths, paths...)
	return c
}

// WithEnv adds KEY=VALUE pairs to the command's environment.
func (c *Command) WithEnv(env ...string) *Command {
	c.env = append(c.env, env...)
	return c
}

// WithDescription overrides the description.
func (c *Command) WithDescription(desc string) *Command {
	c.description = desc
	return c
}

// Timeout returns the configured timeout.
func (c *Command) Timeout() time.Duration { return c.timeout }

// CommandLine returns the command and its arguments.
func (c *Command) CommandLine() []string {
	return append([]string{c.name}, c.args...)
}

// Description returns the command line unless overridden.
func (c *Command) Description() string {
	if c.description != "" {
		return c.description
	}
	return strings.Join(c.CommandLine(), " ")
}

// Run executes the command. A command that cannot be started is a
// configuration error; a command that exits non-zero or times out is an
// ordinary failure result.
func (c *Command) Run(ctx context.Context) (executomat.Outcome, error) {
	res, err := c.runner.Run(ctx, ports.CommandRequest{
		Command:       c.name,
		Args:          c.args,
		SearchPaths:   c.searchPaths,
		Env:           c.env,
		Timeout:       c.timeout,
		CombineOutput: true,
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return executomat.Outcome{}, builderr.Interrupted(err)
		}
		return executomat.Outcome{}, builderr.Wrap(builderr.KindConfiguration, err, "cannot run "+c.name)
	}

	out := executomat.Outcome{
		Code:     res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		TimedOut: res.TimedOut,
	}
	if res.TimedOut {
		out.Stderr += "command timed out after " + c.timeout.String() + "\n"
		if out.Code == 0 {
			out.Code = ports.ExitTimedOut
		}
	}
	return out, nil
}

var _ executomat.Action = (*Command)(nil)
