// Package app wires the build engine to real adapters: it loads settings
// and build scripts, runs builds and manages the build queue.
package app

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/makeomatic/internal/adapters/command"
	"github.com/felixgeelhaar/makeomatic/internal/adapters/filesystem"
	"github.com/felixgeelhaar/makeomatic/internal/adapters/logging"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/buildscript"
	"github.com/felixgeelhaar/makeomatic/internal/domain/environments"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/report"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Mom is the application orchestrator.
type Mom struct {
	fs         ports.FileSystem
	runner     ports.CommandRunner
	logger     ports.Logger
	out        io.Writer
	logOut     io.Writer
	newID      func() string
	loaderOpts []settings.LoaderOption
}

// New creates the application with real adapters. Command output and
// reports go to out, log messages to standard error.
func New(out io.Writer) *Mom {
	return &Mom{
		fs:     filesystem.NewRealFileSystem(),
		runner: command.NewRealRunner(),
		out:    out,
		logOut: os.Stderr,
		newID:  uuid.NewString,
	}
}

// WithFileSystem replaces the file system.
func (m *Mom) WithFileSystem(fs ports.FileSystem) *Mom {
	m.fs = fs
	return m
}

// WithRunner replaces the command runner.
func (m *Mom) WithRunner(runner ports.CommandRunner) *Mom {
	m.runner = runner
	return m
}

// WithLogger uses logger instead of a console logger built from the
// settings.
func (m *Mom) WithLogger(logger ports.Logger) *Mom {
	m.logger = logger
	return m
}

// WithLogOutput sets where the console logger writes.
func (m *Mom) WithLogOutput(w io.Writer) *Mom {
	m.logOut = w
	return m
}

// WithRunIDs replaces the run identifier generator.
func (m *Mom) WithRunIDs(newID func() string) *Mom {
	m.newID = newID
	return m
}

// WithLoaderOptions configures where configuration files are looked up.
func (m *Mom) WithLoaderOptions(opts ...settings.LoaderOption) *Mom {
	m.loaderOpts = append(m.loaderOpts, opts...)
	return m
}

// Result is the outcome of a run.
type Result struct {
	RunID string
	Code  int
	Err   error
	// Report is nil when the run failed before the build was assembled.
	Report *instructions.RunReport
}

// LoadSettings returns the defaults, overridden by the configuration files
// and then by opts. Configuration files are skipped when opts ask for it
// or MOM_TESTS_RUNNING is set.
func (m *Mom) LoadSettings(opts RunOptions) (*settings.Settings, error) {
	st := settings.Defaults()
	loader := settings.NewLoader(m.fs, m.loaderOpts...)
	if !opts.IgnoreConfigFiles && !settings.TestsRunning() {
		if _, err := loader.Load(st); err != nil {
			return nil, err
		}
	}
	if opts.ConfigFile != "" {
		if err := loader.LoadFile(st, opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := opts.apply(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Logger returns the logger for st. Paths below baseDir are shortened to
// $BASE in log entries.
func (m *Mom) Logger(st *settings.Settings, baseDir string) (ports.Logger, error) {
	if m.logger != nil {
		return m.logger, nil
	}
	level, err := ParseLevel(st.Script.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(m.logOut),
		logging.WithLevel(level),
		logging.WithJSONFormat(st.Script.LogJSON),
		logging.WithColor(!st.Script.LogJSON),
		logging.WithBaseDir(baseDir),
	), nil
}

// Run loads the build script and runs it in the mode of opts.
func (m *Mom) Run(ctx context.Context, opts RunOptions) Result {
	res := Result{RunID: m.newID()}
	fail := func(err error) Result {
		res.Err = err
		res.Code = builderr.ExitCode(err)
		return res
	}

	st, err := m.LoadSettings(opts)
	if err != nil {
		return fail(err)
	}
	baseDir := opts.WorkDir
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}
	logger, err := m.Logger(st, baseDir)
	if err != nil {
		return fail(err)
	}
	logger = logger.With(ports.F("run", res.RunID))
	ctx = ports.ContextWithLogger(ctx, logger)

	script, err := m.loadScript(opts.Script)
	if err != nil {
		ports.Log(ctx, ports.LevelError, "cannot load build script", ports.F("script", opts.Script), ports.F("error", err))
		return fail(err)
	}

	sessionOpts := []instructions.SessionOption{
		instructions.WithLogger(logger),
		instructions.WithFileSystem(m.fs),
		instructions.WithRunner(m.runner),
		instructions.WithRunID(res.RunID),
		instructions.WithOutput(m.out),
	}
	if opts.WorkDir != "" {
		sessionOpts = append(sessionOpts, instructions.WithWorkDir(opts.WorkDir))
	}
	s := instructions.NewSession(st, sessionOpts...)

	assembleOpts := []buildscript.AssembleOption{}
	if st.Script.RunMode == settings.RunModeBuild {
		var reportOpts []report.Option
		if opts.ShowActions {
			reportOpts = append(reportOpts, report.WithActions())
		}
		assembleOpts = append(assembleOpts, buildscript.WithRootPlugins(report.NewPlugin(reportOpts...)))
	}
	if opts.EnvironmentsDir != "" {
		assembleOpts = append(assembleOpts,
			buildscript.WithEnvironmentOptions(environments.WithBaseDir(ports.ExpandPath(opts.EnvironmentsDir))))
	}
	b, err := script.Assemble(s, assembleOpts...)
	if err != nil {
		return fail(err)
	}
	b.SetArgs(opts.Args)

	res.Code = b.Run(ctx)
	res.Err = s.Err()
	rep := b.Report()
	res.Report = &rep
	return res
}

func (m *Mom) loadScript(path string) (*buildscript.Script, error) {
	if path == "" {
		return nil, builderr.Configuration("no build script given")
	}
	abs, err := filepath.Abs(ports.ExpandPath(path))
	if err != nil {
		return nil, builderr.Wrap(builderr.KindConfiguration, err, "invalid build script path "+path)
	}
	return buildscript.Load(m.fs, abs)
}
