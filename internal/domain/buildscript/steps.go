package buildscript

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
)

// StepsPluginName is the name of the plugin that adds a node's scripted
// actions.
const StepsPluginName = "steps"

// Folder placeholders available in actions, plugin arguments and folders.
const (
	VarBaseDir     = "${BASE_DIR}"
	VarLogDir      = "${LOG_DIR}"
	VarPackagesDir = "${PACKAGES_DIR}"
	VarSrcDir      = "${SRC_DIR}"
	VarTmpDir      = "${TMP_DIR}"
	VarBuildDir    = "${BUILD_DIR}"
	VarTargetDir   = "${TARGET_DIR}"
)

// folders holds the resolved folders of one node.
type folders struct {
	vars    map[string]string
	workDir string
}

// resolveFolders computes the placeholders of n. Actions run in the build
// folder of configurations, in the source folder of projects with a
// source location and in the base folder otherwise.
func resolveFolders(n *instructions.Node, s *instructions.Session, hasSource bool) (*folders, error) {
	base, err := n.BaseDir()
	if err != nil {
		return nil, builderr.Wrap(builderr.KindFramework, err, "scripted actions set up before their node")
	}
	logDir, _ := n.LogDir()
	pkgDir, _ := n.PackagesDir()
	f := &folders{
		vars: map[string]string{
			VarBaseDir:     base,
			VarLogDir:      logDir,
			VarPackagesDir: pkgDir,
		},
		workDir: base,
	}

	for p := n; p != nil; p = p.Parent() {
		if p.Kind() != instructions.KindProject {
			continue
		}
		projectBase, err := p.BaseDir()
		if err != nil {
			return nil, builderr.Wrap(builderr.KindFramework, err, "scripted actions set up before their project")
		}
		f.vars[VarSrcDir] = filepath.Join(projectBase, s.Settings.Project.SourceDir)
		f.vars[VarTmpDir] = filepath.Join(projectBase, s.Settings.Project.TempDir)
		if p == n && hasSource {
			f.workDir = f.vars[VarSrcDir]
		}
		break
	}

	if n.Kind() == instructions.KindConfiguration {
		f.vars[VarBuildDir] = filepath.Join(base, s.Settings.Configuration.BuildDir)
		f.vars[VarTargetDir] = filepath.Join(base, s.Settings.Configuration.TargetDir)
		f.workDir = f.vars[VarBuildDir]
	}
	return f, nil
}

// Expand replaces the known placeholders in text. Unknown placeholders are
// left alone.
func (f *folders) Expand(text string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	keys := make([]string, 0, len(f.vars))
	for k := range f.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, f.vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (f *folders) dir(dir string) string {
	if dir == "" {
		return f.workDir
	}
	dir = f.Expand(dir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(f.workDir, dir)
	}
	return dir
}

// stepsPlugin adds the actions a build script lists for a node.
type stepsPlugin struct {
	instructions.BasePlugin
	steps     StepsSpec
	hasSource bool
}

func newStepsPlugin(steps StepsSpec, hasSource bool) *stepsPlugin {
	return &stepsPlugin{
		BasePlugin: instructions.NewBasePlugin(StepsPluginName, false),
		steps:      steps,
		hasSource:  hasSource,
	}
}

// Setup resolves the placeholders and adds the actions to their steps.
// Naming a step outside the build sequence is a configuration error.
func (p *stepsPlugin) Setup(_ context.Context, s *instructions.Session) error {
	if len(p.steps) == 0 {
		return nil
	}
	f, err := resolveFolders(p.Node(), s, p.hasSource)
	if err != nil {
		return err
	}
	defaultTimeout, err := s.Settings.CommandTimeout()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(p.steps))
	for name := range p.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		step, err := p.Node().Executomat().Step(name)
		if err != nil {
			return builderr.Wrap(builderr.KindConfiguration, err, "the build script uses a step outside the build sequence").
				WithDetails("known steps: " + strings.Join(s.Settings.StepNames(), ", "))
		}
		for _, spec := range p.steps[name] {
			if err := p.add(step, spec, f, s, defaultTimeout); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *stepsPlugin) add(step *executomat.Step, spec ActionSpec, f *folders, s *instructions.Session, defaultTimeout time.Duration) error {
	phase, err := parsePhase(spec.Phase)
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "invalid action in step "+step.Name())
	}
	timeout, err := parseTimeout(spec.Timeout)
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "invalid action in step "+step.Name())
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}

	opts := []executomat.ActionOption{executomat.InDir(f.dir(spec.Dir))}
	if spec.IgnorePreviousFailure {
		opts = append(opts, executomat.IgnorePreviousFailure())
	}

	var action executomat.Action
	switch {
	case spec.Shell != "":
		cmd := actions.NewShell(s.Runner, f.Expand(spec.Shell)).
			WithTimeout(timeout).
			WithSearchPaths(s.Settings.System.ExtraPaths...)
		if spec.Description != "" {
			cmd.WithDescription(spec.Description)
		}
		action = cmd
	case len(spec.Command) > 0:
		args := make([]string, 0, len(spec.Command)-1)
		for _, a := range spec.Command[1:] {
			args = append(args, f.Expand(a))
		}
		cmd := actions.NewCommand(s.Runner, f.Expand(spec.Command[0]), args...).
			WithTimeout(timeout).
			WithSearchPaths(s.Settings.System.ExtraPaths...)
		if spec.Description != "" {
			cmd.WithDescription(spec.Description)
		}
		action = cmd
	case spec.MkDir != "":
		action = described(actions.NewMkDir(s.FS, f.dir(spec.MkDir)), spec.Description)
	case spec.RmDir != "":
		action = described(actions.NewRmDir(s.FS, f.dir(spec.RmDir)), spec.Description)
	default:
		return builderr.Configuration("empty action in step %s", step.Name())
	}

	_, err = step.AddAction(phase, action, opts...)
	return err
}

// describedAction overrides the description of an action.
type describedAction struct {
	executomat.Action
	description string
}

func (a describedAction) Description() string { return a.description }

func described(a executomat.Action, description string) executomat.Action {
	if description == "" {
		return a
	}
	return describedAction{Action: a, description: description}
}

func parsePhase(s string) (executomat.Phase, error) {
	switch strings.ToLower(s) {
	case "", "main":
		return executomat.PhaseMain, nil
	case "pre":
		return executomat.PhasePre, nil
	case "post":
		return executomat.PhasePost, nil
	}
	return executomat.PhaseMain, fmt.Errorf("%w %q", ErrUnknownPhase, s)
}

var _ instructions.Plugin = (*stepsPlugin)(nil)
