// Package procstate guards the process-wide working directory and
// environment table. Every mutation performed by build actions or by applied
// dependency environments happens inside a Guard scope and is rolled back
// when the scope is released.
package procstate

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Snapshot is a copy of the working directory and environment table.
type Snapshot struct {
	cwd string
	env []string
}

// Capture records the current working directory and environment.
func Capture() (*Snapshot, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}
	return &Snapshot{cwd: cwd, env: os.Environ()}, nil
}

// Dir returns the recorded working directory.
func (s *Snapshot) Dir() string {
	return s.cwd
}

// Lookup returns the recorded value of an environment variable.
func (s *Snapshot) Lookup(key string) (string, bool) {
	prefix := key + "="
	for _, kv := range s.env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

// Restore resets the process to the recorded state.
func (s *Snapshot) Restore() error {
	os.Clearenv()
	for _, kv := range s.env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to restore %s: %w", key, err)
		}
	}
	if err := os.Chdir(s.cwd); err != nil {
		return fmt.Errorf("failed to restore working directory %s: %w", s.cwd, err)
	}
	return nil
}

// Guard is a scoped acquisition of the process state. Callers must defer
// Release immediately after a successful Acquire.
type Guard struct {
	snapshot *Snapshot
	started  time.Time
	released bool
}

// Acquire snapshots the process state and, if dir is non-empty, changes
// into dir. When the change of directory fails, nothing is left modified.
func Acquire(dir string) (*Guard, error) {
	snap, err := Capture()
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return nil, fmt.Errorf("cannot change into working directory %s: %w", dir, err)
		}
	}
	return &Guard{snapshot: snap, started: time.Now()}, nil
}

// Elapsed returns the time since the guard was acquired.
func (g *Guard) Elapsed() time.Duration {
	return time.Since(g.started)
}

// Release restores the recorded state. Releasing twice is a no-op.
func (g *Guard) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	return g.snapshot.Restore()
}

// Do runs fn inside a guard scope rooted at dir. The state is restored even
// if fn panics; the panic is then re-raised.
func Do(dir string, fn func() error) (err error) {
	g, err := Acquire(dir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := g.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
