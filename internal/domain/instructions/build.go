package instructions

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Printer answers print mode requests, such as the current revision of
// the project's source code.
type Printer interface {
	Print(ctx context.Context, w io.Writer, args []string) error
}

// Build is the root of the instructions tree. It drives the phases in
// order and owns the return code of the run.
type Build struct {
	root    *Node
	session *Session
	args    []string
	printer Printer
}

// NewBuild creates a build root named name.
func NewBuild(name string, s *Session, opts ...Option) *Build {
	return &Build{
		root:    New(name, KindBuild, opts...),
		session: s,
	}
}

// Root returns the root node.
func (b *Build) Root() *Node { return b.root }

// Session returns the session of the run.
func (b *Build) Session() *Session { return b.session }

// AddProject attaches a project below the root.
func (b *Build) AddProject(project *Node) error {
	return b.root.AddChild(project)
}

// SetArgs sets the arguments of query and print mode.
func (b *Build) SetArgs(args []string) { b.args = args }

// SetPrinter sets the handler of print mode.
func (b *Build) SetPrinter(p Printer) { b.printer = p }

// Run executes the phases for the configured run mode and returns the
// exit code. The first error of any phase aborts the remaining phases;
// shutdown still runs in build mode.
func (b *Build) Run(ctx context.Context) int {
	s := b.session
	ctx = s.Context(ctx)
	s.StartedAt = time.Now()

	if err := b.guardedPhases(ctx); err != nil {
		s.RegisterError(ctx, err)
	}
	if s.RunMode() == settings.RunModeBuild && !s.Settings.Build.DisableShutdown {
		s.log(ctx, ports.LevelDebug, "phase", ports.F("phase", "shutdown"))
		b.root.ShutDown(ctx, s)
	}
	s.FinishedAt = time.Now()
	s.log(ctx, ports.LevelInfo, "run finished",
		ports.F("run", s.RunID), ports.F("code", s.ReturnCode()), ports.F("duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)))
	return s.ReturnCode()
}

// Report returns the report of the run.
func (b *Build) Report() RunReport {
	return NewRunReport(b.root, b.session)
}

// guardedPhases turns a panic in a plugin hook into a framework error so
// that shutdown still runs.
func (b *Build) guardedPhases(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = builderr.Framework("panic during build: %v", p)
		}
	}()
	return b.runPhases(ctx)
}

func (b *Build) runPhases(ctx context.Context) error {
	s := b.session
	if s.FS == nil {
		return builderr.Framework("session has no file system")
	}
	if err := s.Settings.Validate(); err != nil {
		return err
	}
	if err := settings.CheckMinimumVersion(s.Settings.Mom.Version, s.Settings.Mom.MinimumVersion); err != nil {
		return err
	}
	mode := s.RunMode()
	s.log(ctx, ports.LevelInfo, "run started",
		ports.F("run", s.RunID), ports.F("mode", mode), ports.F("type", s.BuildType()),
		ports.F("description", s.Settings.BuildTypeDescription(s.BuildType())))

	if err := b.phase(ctx, "prepare", b.root.Prepare); err != nil {
		return err
	}
	if mode != settings.RunModeQuery && mode != settings.RunModePrint {
		if err := b.phase(ctx, "preflight", b.root.PreflightCheck); err != nil {
			return err
		}
	}
	if err := b.phase(ctx, "setup", b.root.Setup); err != nil {
		return err
	}

	switch mode {
	case settings.RunModeDescribe:
		return b.root.Describe(s.Out)
	case settings.RunModeQuery:
		return b.query()
	case settings.RunModePrint:
		if b.printer == nil {
			return builderr.Configuration("print mode needs a source code provider")
		}
		return b.printer.Print(ctx, s.Out, b.args)
	}

	if err := b.phase(ctx, "execute", b.execute); err != nil {
		return err
	}
	if err := b.phase(ctx, "wrap-up", b.root.WrapUp); err != nil {
		return err
	}
	if err := b.phase(ctx, "report", b.root.Report); err != nil {
		return err
	}
	return b.phase(ctx, "notify", b.root.Notify)
}

func (b *Build) phase(ctx context.Context, name string, fn func(context.Context, *Session) error) error {
	if err := ctx.Err(); err != nil {
		return builderr.Interrupted(err)
	}
	b.session.log(ctx, ports.LevelDebug, "phase", ports.F("phase", name))
	if err := fn(ctx, b.session); err != nil {
		if be, ok := err.(*builderr.Error); ok && be.Phase == "" {
			return be.WithPhase(name)
		}
		return err
	}
	return nil
}

// execute runs the build sequence step by step over the whole tree: every
// node runs a step before any node runs the next one.
func (b *Build) execute(ctx context.Context, s *Session) error {
	for _, step := range b.root.exec.Steps() {
		if err := ctx.Err(); err != nil {
			return builderr.Interrupted(err)
		}
		if err := b.root.ExecuteStep(ctx, s, step.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (b *Build) query() error {
	s := b.session
	keys := b.args
	if len(keys) == 0 {
		all, err := s.Settings.Keys()
		if err != nil {
			return err
		}
		keys = all
	}
	for _, key := range keys {
		value, err := s.Settings.Get(key)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(s.Out, "%s: %s\n", key, value); err != nil {
			return builderr.Wrap(builderr.KindFramework, err, "cannot write query output")
		}
	}
	return nil
}
