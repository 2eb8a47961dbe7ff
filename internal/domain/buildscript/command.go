package buildscript

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// DefaultVersionArg is passed to a tool to ask for its version.
const DefaultVersionArg = "--version"

var toolVersionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// CommandPlugin wraps a command line tool. The preflight check verifies
// that the tool runs and is recent enough; setup adds its invocations to
// the listed steps.
type CommandPlugin struct {
	instructions.BasePlugin
	spec      PluginSpec
	hasSource bool
	version   string
}

// NewCommandPlugin creates a plugin for spec.
func NewCommandPlugin(spec PluginSpec) *CommandPlugin {
	return &CommandPlugin{
		BasePlugin: instructions.NewBasePlugin(spec.DisplayName(), spec.Optional),
		spec:       spec,
	}
}

// Command returns the wrapped tool.
func (p *CommandPlugin) Command() string { return p.spec.Command }

// SearchPaths returns the folders searched for the tool before PATH.
func (p *CommandPlugin) SearchPaths() []string {
	return append([]string(nil), p.spec.SearchPaths...)
}

// Version returns the tool version found by the preflight check.
func (p *CommandPlugin) Version() string { return p.version }

func (p *CommandPlugin) searchPaths(s *instructions.Session) []string {
	paths := make([]string, 0, len(p.spec.SearchPaths)+len(s.Settings.System.ExtraPaths))
	for _, sp := range p.spec.SearchPaths {
		paths = append(paths, ports.ExpandPath(sp))
	}
	return append(paths, s.Settings.System.ExtraPaths...)
}

// PreflightCheck runs the tool with its version argument.
func (p *CommandPlugin) PreflightCheck(ctx context.Context, s *instructions.Session) error {
	arg := p.spec.VersionArg
	if arg == "" {
		arg = DefaultVersionArg
	}
	res, err := s.Runner.Run(ctx, ports.CommandRequest{
		Command:       p.spec.Command,
		Args:          []string{arg},
		SearchPaths:   p.searchPaths(s),
		CombineOutput: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return builderr.Interrupted(err)
		}
		return builderr.Wrap(builderr.KindConfiguration, err, "cannot run "+p.spec.Command)
	}
	if !res.Success() {
		return builderr.Configuration("%s %s exited with code %d", p.spec.Command, arg, res.ExitCode).
			WithDetails(strings.TrimSpace(res.Stdout))
	}
	p.version = toolVersionPattern.FindString(res.Stdout + res.Stderr)
	ports.Log(ctx, ports.LevelDebug, "tool found",
		ports.F("plugin", p.Name()), ports.F("command", p.spec.Command), ports.F("version", p.version))

	if p.spec.MinimumVersion == "" {
		return nil
	}
	required := "v" + strings.TrimPrefix(p.spec.MinimumVersion, "v")
	if !semver.IsValid(required) {
		return builderr.Configuration("invalid minimum version %q for %s", p.spec.MinimumVersion, p.spec.Command)
	}
	if p.version == "" {
		return builderr.Configuration("cannot determine the version of %s", p.spec.Command)
	}
	if semver.Compare("v"+p.version, required) < 0 {
		return builderr.Configuration("%s %s is older than the required version %s",
			p.spec.Command, p.version, p.spec.MinimumVersion)
	}
	return nil
}

// Setup adds one command action per listed invocation.
func (p *CommandPlugin) Setup(_ context.Context, s *instructions.Session) error {
	if len(p.spec.Steps) == 0 {
		return nil
	}
	f, err := resolveFolders(p.Node(), s, p.hasSource)
	if err != nil {
		return err
	}
	timeout, err := parseTimeout(p.spec.Timeout)
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "invalid plugin "+p.Name())
	}
	if timeout == 0 {
		if timeout, err = s.Settings.CommandTimeout(); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(p.spec.Steps))
	for name := range p.spec.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		step, err := p.Node().Executomat().Step(name)
		if err != nil {
			return builderr.Wrap(builderr.KindConfiguration, err, "plugin "+p.Name()+" uses a step outside the build sequence")
		}
		for _, line := range p.spec.Steps[name] {
			args := make([]string, 0, len(line))
			for _, a := range line {
				args = append(args, f.Expand(a))
			}
			cmd := actions.NewCommand(s.Runner, p.spec.Command, args...).
				WithTimeout(timeout).
				WithSearchPaths(p.searchPaths(s)...)
			if _, err := step.AddAction(executomat.PhaseMain, cmd, executomat.InDir(f.workDir)); err != nil {
				return err
			}
		}
	}
	return nil
}

var _ instructions.Plugin = (*CommandPlugin)(nil)
