package instructions

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger ports.Logger) SessionOption {
	return func(s *Session) {
		s.Logger = logger
	}
}

// WithFileSystem sets the file system used for build folders and logs.
func WithFileSystem(fs ports.FileSystem) SessionOption {
	return func(s *Session) {
		s.FS = fs
	}
}

// WithRunner sets the command runner handed to plugins.
func WithRunner(runner ports.CommandRunner) SessionOption {
	return func(s *Session) {
		s.Runner = runner
	}
}

// WithRunID sets the identifier of the run.
func WithRunID(id string) SessionOption {
	return func(s *Session) {
		s.RunID = id
	}
}

// WithWorkDir sets the folder the build base directory is created in.
func WithWorkDir(dir string) SessionOption {
	return func(s *Session) {
		s.WorkDir = dir
	}
}

// WithOutput sets where describe, query and print output goes.
func WithOutput(w io.Writer) SessionOption {
	return func(s *Session) {
		s.Out = w
	}
}

// Session carries the state of one run through every phase: settings,
// collaborators and the registered return code.
type Session struct {
	Settings *settings.Settings
	Logger   ports.Logger
	FS       ports.FileSystem
	Runner   ports.CommandRunner
	RunID    string
	WorkDir  string
	Out      io.Writer

	StartedAt  time.Time
	FinishedAt time.Time

	returnCode int
	err        error
}

// NewSession creates a session for st. The work directory defaults to the
// current directory.
func NewSession(st *settings.Settings, opts ...SessionOption) *Session {
	s := &Session{Settings: st, Out: os.Stdout}
	if s.Settings == nil {
		s.Settings = settings.Defaults()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			s.WorkDir = wd
		}
	}
	return s
}

// BuildType returns the configured build type.
func (s *Session) BuildType() string {
	return s.Settings.Project.BuildType
}

// RunMode returns the configured run mode.
func (s *Session) RunMode() string {
	return s.Settings.Script.RunMode
}

// RegisterReturnCode records code unless an earlier non-zero code was
// registered. It reports whether code became the return code.
func (s *Session) RegisterReturnCode(code int) bool {
	if code == builderr.ExitSuccess || s.returnCode != builderr.ExitSuccess {
		return false
	}
	s.returnCode = code
	return true
}

// RegisterError records err as the run's error if it is the first one.
// Later errors are only logged.
func (s *Session) RegisterError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	code := builderr.ExitCode(err)
	if s.err == nil {
		s.err = err
		s.RegisterReturnCode(code)
		s.log(ctx, ports.LevelError, "build failed", ports.F("error", err), ports.F("code", code))
		return
	}
	s.log(ctx, ports.LevelWarn, "additional error ignored", ports.F("error", err), ports.F("code", code))
}

// ReturnCode returns the first registered non-zero code, or 0.
func (s *Session) ReturnCode() int {
	return s.returnCode
}

// Err returns the first registered error.
func (s *Session) Err() error {
	return s.err
}

// Context attaches the session logger to ctx.
func (s *Session) Context(ctx context.Context) context.Context {
	if s.Logger == nil {
		return ctx
	}
	return ports.ContextWithLogger(ctx, s.Logger)
}

func (s *Session) log(ctx context.Context, level ports.Level, msg string, fields ...ports.Field) {
	if s.Logger == nil {
		ports.Log(ctx, level, msg, fields...)
		return
	}
	ports.Log(ports.ContextWithLogger(ctx, s.Logger), level, msg, fields...)
}
