// Package mocks provides test doubles for the ports interfaces.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
type CommandRunner struct {
	mu       sync.RWMutex
	results  map[string]ports.CommandResult
	errors   map[string]error
	fallback *ports.CommandResult
	calls    []ports.CommandRequest
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string]ports.CommandResult),
		errors:  make(map[string]error),
		calls:   make([]ports.CommandRequest, 0),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddError registers an expected command that should fail to start.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// SetDefault answers every unregistered command with result.
func (m *CommandRunner) SetDefault(result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &result
}

// Run records the request and returns the registered outcome.
func (m *CommandRunner) Run(_ context.Context, req ports.CommandRequest) (ports.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	key := buildKey(req.Command, req.Args)

	if err, ok := m.errors[key]; ok {
		return ports.CommandResult{ExitCode: -1}, err
	}
	if result, ok := m.results[key]; ok {
		return result, nil
	}
	if m.fallback != nil {
		return *m.fallback, nil
	}

	return ports.CommandResult{ExitCode: -1}, fmt.Errorf("no mock result for command: %s %v", req.Command, req.Args)
}

// Calls returns all recorded requests.
func (m *CommandRunner) Calls() []ports.CommandRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]ports.CommandRequest, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CommandLines returns the recorded calls as "command arg..." strings.
func (m *CommandRunner) CommandLines() []string {
	calls := m.Calls()
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, strings.TrimSpace(c.Command+" "+strings.Join(c.Args, " ")))
	}
	return lines
}

func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

var _ ports.CommandRunner = (*CommandRunner)(nil)
