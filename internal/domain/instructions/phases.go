package instructions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Well-known step names the engine itself attaches actions to.
const (
	StepCreateFolders = "create-folders"
	StepCheckout      = "checkout"
	StepCleanup       = "cleanup"
)

// stale base directories are renamed with this timestamp suffix
const staleDirLayout = "2006-01-02-15-04-05"

const maxStaleDirs = 1000

// Prepare assigns folders and creates the build sequence steps, self
// before children. Extensions may reshape the subtree first.
func (n *Node) Prepare(ctx context.Context, s *Session) error {
	if p, ok := n.ext.(Preparer); ok {
		if err := p.PrepareNode(ctx, s, n); err != nil {
			return err
		}
	}
	if err := n.prepareSelf(s); err != nil {
		return err
	}
	for _, p := range n.plugins {
		if !p.Enabled() {
			continue
		}
		if err := p.Prepare(ctx, s); err != nil {
			return n.pluginError(p, "prepare", err)
		}
	}
	for _, c := range n.Children() {
		if err := c.Prepare(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) prepareSelf(s *Session) error {
	n.assignDirs(s)
	n.exec.SetFileSystem(s.FS)
	n.exec.SetLogDir(n.logDir)
	n.exec.SetGate(func() bool { return n.StepsShouldRun(s) })

	if n.prepared {
		return nil
	}
	specs, err := s.Settings.BuildSteps(s.BuildType())
	if err != nil {
		return err
	}
	for _, spec := range specs {
		opts := make([]executomat.StepOption, 0, 2)
		if !spec.Enabled {
			opts = append(opts, executomat.Disabled())
		}
		if spec.IgnorePreviousFailure {
			opts = append(opts, executomat.RunAfterFailure())
		}
		if err := n.exec.AddStep(executomat.NewStep(spec.Name, opts...)); err != nil {
			return err
		}
	}
	n.prepared = true
	return nil
}

func (n *Node) assignDirs(s *Session) {
	mode := s.RunMode()
	if mode != settings.RunModeBuild && mode != settings.RunModeDescribe {
		n.baseDir, n.logDir, n.packagesDir = s.WorkDir, s.WorkDir, s.WorkDir
		return
	}
	if n.parent == nil {
		n.baseDir = filepath.Join(s.WorkDir, ports.SafeName(n.name))
		n.logDir = filepath.Join(n.baseDir, s.Settings.Project.LogDir)
		n.packagesDir = filepath.Join(n.baseDir, s.Settings.Project.PackagesDir)
		return
	}
	dirName := fmt.Sprintf("%d_%s", n.Index()+1, ports.SafeName(n.name))
	n.baseDir = filepath.Join(n.parent.baseDir, dirName)
	n.logDir = filepath.Join(n.parent.logDir, dirName)
	n.packagesDir = filepath.Join(n.parent.packagesDir, dirName)
}

// PreflightCheck runs the preflight checks of the enabled plugins, then
// recurses. A failing optional plugin is disabled; a failing required
// plugin aborts the run with a configuration error.
func (n *Node) PreflightCheck(ctx context.Context, s *Session) error {
	return n.scoped(ctx, s, func() error {
		if err := n.preflightSelf(ctx, s); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := c.PreflightCheck(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (n *Node) preflightSelf(ctx context.Context, s *Session) error {
	for _, p := range n.plugins {
		if !p.Enabled() {
			continue
		}
		err := p.PreflightCheck(ctx, s)
		if err == nil {
			continue
		}
		if builderr.KindOf(err) == builderr.KindInterrupted {
			return err
		}
		if p.Optional() {
			p.SetEnabled(false)
			s.log(ctx, ports.LevelWarn, "optional plugin disabled",
				ports.F("plugin", p.Name()), ports.F("node", n.Path()), ports.F("error", err))
			continue
		}
		return builderr.Wrap(builderr.KindConfiguration, n.pluginError(p, "preflight check", err),
			"required plugin "+p.Name()+" is not usable")
	}
	return nil
}

// scoped runs fn inside the extension's scope, if it has one.
func (n *Node) scoped(ctx context.Context, s *Session, fn func() error) error {
	if sc, ok := n.ext.(Scoper); ok {
		return sc.Scope(ctx, s, n, fn)
	}
	return fn()
}

// Setup creates folders and attaches folder actions, then sets up the
// plugins, then the children.
func (n *Node) Setup(ctx context.Context, s *Session) error {
	if err := n.setupSelf(ctx, s); err != nil {
		return err
	}
	for _, p := range n.plugins {
		if !p.Enabled() {
			continue
		}
		if err := p.Setup(ctx, s); err != nil {
			return n.pluginError(p, "setup", err)
		}
	}
	n.setUp = true
	for _, c := range n.children {
		if err := c.Setup(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) setupSelf(ctx context.Context, s *Session) error {
	build := s.RunMode() == settings.RunModeBuild
	if n.parent == nil {
		if !build {
			return nil
		}
		if err := n.replaceStaleBaseDir(ctx, s); err != nil {
			return err
		}
		return n.makeDirs(s, n.baseDir, n.logDir, n.packagesDir)
	}

	folders := []string{n.baseDir}
	if n.kind == KindConfiguration {
		folders = append(folders,
			filepath.Join(n.baseDir, s.Settings.Configuration.BuildDir),
			filepath.Join(n.baseDir, s.Settings.Configuration.TargetDir))
	}
	if create, err := n.exec.Step(StepCreateFolders); err == nil {
		for _, f := range folders {
			if _, err := create.AddAction(executomat.PhaseMain, actions.NewMkDir(s.FS, f)); err != nil {
				return err
			}
		}
	}
	if cleanup, err := n.exec.Step(StepCleanup); err == nil {
		for _, f := range folders {
			if _, err := cleanup.PrependAction(executomat.PhaseMain, actions.NewRmDir(s.FS, f)); err != nil {
				return err
			}
		}
	}
	if !build {
		return nil
	}
	return n.makeDirs(s, n.logDir, n.packagesDir)
}

func (n *Node) makeDirs(s *Session, dirs ...string) error {
	for _, d := range dirs {
		if err := s.FS.MkdirAll(d, 0o755); err != nil {
			return builderr.Wrap(builderr.KindConfiguration, err,
				fmt.Sprintf("cannot create required folder %s for %s", d, n.name))
		}
	}
	return nil
}

// replaceStaleBaseDir moves a base directory left over from an earlier run
// aside, or removes it when old directories are not kept.
func (n *Node) replaceStaleBaseDir(ctx context.Context, s *Session) error {
	if !s.FS.IsDir(n.baseDir) {
		return nil
	}
	if !s.Settings.Build.MoveOldDirectories {
		if err := s.FS.RemoveAll(n.baseDir); err != nil {
			return builderr.Wrap(builderr.KindConfiguration, err, "cannot remove existing build folder "+n.baseDir)
		}
		return nil
	}

	mtime := time.Now()
	if info, err := s.FS.GetFileInfo(n.baseDir); err == nil {
		mtime = info.ModTime
	}
	prefix := n.baseDir + "-" + mtime.Format(staleDirLayout)
	target := prefix
	for i := 1; s.FS.Exists(target); i++ {
		if i > maxStaleDirs {
			return builderr.Framework("%d old build folders exist for %s", maxStaleDirs, n.baseDir)
		}
		target = fmt.Sprintf("%s__%d", prefix, i)
	}
	if err := s.FS.Rename(n.baseDir, target); err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err,
			fmt.Sprintf("cannot move existing build folder %s to %s", n.baseDir, target))
	}
	s.log(ctx, ports.LevelInfo, "moved stale build folder", ports.F("from", n.baseDir), ports.F("to", target))
	return nil
}

// ExecuteStep runs the named step at this node, then at every child.
// Extensions can wrap the walk of their subtree. A failed step registers
// a build error return code; the returned error is reserved for
// interruptions and engine faults.
func (n *Node) ExecuteStep(ctx context.Context, s *Session, name string) error {
	run := func() error {
		if err := n.executeOwnStep(ctx, s, name); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := c.ExecuteStep(ctx, s, name); err != nil {
				return err
			}
		}
		return nil
	}
	return n.scoped(ctx, s, run)
}

func (n *Node) executeOwnStep(ctx context.Context, s *Session, name string) error {
	step, err := n.exec.Step(name)
	if err != nil {
		return nil
	}
	if err := n.exec.RunStep(ctx, name); err != nil {
		return err
	}
	if step.Failed() {
		s.RegisterReturnCode(builderr.ExitBuildError)
		s.log(ctx, ports.LevelError, "step failed",
			ports.F("node", n.Path()), ports.F("step", name), ports.F("log", step.LogFile()))
	}
	return nil
}

// WrapUp calls the wrap-up hook of the enabled plugins, then recurses.
func (n *Node) WrapUp(ctx context.Context, s *Session) error {
	return n.walkPlugins(ctx, "wrap-up", func(p Plugin) error { return p.WrapUp(ctx, s) })
}

// Report calls the report hook of the enabled plugins, then recurses.
func (n *Node) Report(ctx context.Context, s *Session) error {
	return n.walkPlugins(ctx, "report", func(p Plugin) error { return p.Report(ctx, s) })
}

// Notify calls the notify hook of the enabled plugins, then recurses.
func (n *Node) Notify(ctx context.Context, s *Session) error {
	return n.walkPlugins(ctx, "notify", func(p Plugin) error { return p.Notify(ctx, s) })
}

func (n *Node) walkPlugins(ctx context.Context, phase string, hook func(Plugin) error) error {
	for _, p := range n.plugins {
		if !p.Enabled() {
			continue
		}
		if err := hook(p); err != nil {
			return n.pluginError(p, phase, err)
		}
	}
	for _, c := range n.children {
		if err := c.walkPlugins(ctx, phase, hook); err != nil {
			return err
		}
	}
	return nil
}

// ShutDown shuts the children down before the node itself. Only nodes
// that completed setup are shut down. Plugin errors are logged and never
// change the return code.
func (n *Node) ShutDown(ctx context.Context, s *Session) {
	for i := len(n.children) - 1; i >= 0; i-- {
		n.children[i].ShutDown(ctx, s)
	}
	if !n.setUp {
		return
	}
	for i := len(n.plugins) - 1; i >= 0; i-- {
		p := n.plugins[i]
		if !p.Enabled() {
			continue
		}
		if err := shutDownPlugin(ctx, s, p); err != nil {
			s.log(ctx, ports.LevelWarn, "plugin shutdown failed",
				ports.F("plugin", p.Name()), ports.F("node", n.Path()), ports.F("error", err))
		}
	}
}

func shutDownPlugin(ctx context.Context, s *Session, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = builderr.Framework("plugin %q panicked during shutdown: %v", p.Name(), r)
		}
	}()
	return p.ShutDown(ctx, s)
}

// IsSetUp reports whether the node completed its setup phase.
func (n *Node) IsSetUp() bool { return n.setUp }

func (n *Node) pluginError(p Plugin, phase string, err error) error {
	return &PluginError{Plugin: p.Name(), Node: n.Path(), Phase: phase, Err: err}
}
