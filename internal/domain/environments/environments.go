package environments

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
	"github.com/felixgeelhaar/makeomatic/internal/procstate"
)

// Option configures an Environments node.
type Option func(*Environments)

// Optional lets the build continue without the configurations when no
// environment matches.
func Optional() Option {
	return func(e *Environments) {
		e.optional = true
	}
}

// WithBaseDir overrides the environments folder from the settings.
func WithBaseDir(dir string) Option {
	return func(e *Environments) {
		e.baseDir = dir
	}
}

// WithRanker sets the order used to pick the highest scoring match.
func WithRanker(r Ranker) Option {
	return func(e *Environments) {
		e.ranker = r
	}
}

// Environments is the extension of an environments node. During prepare
// it instantiates its configuration templates, either directly or once per
// matching environment, depending on the expansion mode of the build type.
type Environments struct {
	patterns  []string
	templates []*instructions.Template
	optional  bool
	baseDir   string
	ranker    Ranker

	mode    settings.ExpansionMode
	matches []Match
}

// New creates an environments node requiring patterns, with the
// configuration templates to expand.
func New(name string, patterns []string, templates []*instructions.Template, opts ...Option) *instructions.Node {
	return instructions.New(name, instructions.KindEnvironments,
		instructions.WithExtension(newExtension(patterns, templates, opts...)))
}

// NewTemplate describes an environments node inside a template, so every
// instance gets its own matching state.
func NewTemplate(name string, patterns []string, templates []*instructions.Template, opts ...Option) *instructions.Template {
	return &instructions.Template{
		Name: name,
		Kind: instructions.KindEnvironments,
		Extension: func() any {
			return newExtension(patterns, templates, opts...)
		},
	}
}

func newExtension(patterns []string, templates []*instructions.Template, opts ...Option) *Environments {
	e := &Environments{
		patterns:  append([]string(nil), patterns...),
		templates: templates,
		mode:      settings.ExpandIgnore,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Patterns returns the required dependency patterns.
func (e *Environments) Patterns() []string {
	return append([]string(nil), e.patterns...)
}

// IsOptional reports whether missing environments are tolerated.
func (e *Environments) IsOptional() bool { return e.optional }

// Mode returns the expansion mode chosen during prepare.
func (e *Environments) Mode() settings.ExpansionMode { return e.mode }

// Matches returns the environments selected during prepare.
func (e *Environments) Matches() []Match { return e.matches }

// PrepareNode expands the templates below n.
func (e *Environments) PrepareNode(ctx context.Context, s *instructions.Session, n *instructions.Node) error {
	e.mode = s.Settings.ExpansionModeFor(s.BuildType())
	ports.Log(ctx, ports.LevelDebug, "environment expansion",
		ports.F("node", n.Path()), ports.F("type", s.BuildType()), ports.F("mode", e.mode))

	if e.mode == settings.ExpandIgnore {
		_, err := instructions.InstantiateAll(n, e.templates)
		return err
	}

	base := e.baseDir
	if base == "" {
		base = s.Settings.Environments.BaseDir
	}
	inst, err := Discover(ctx, ports.ExpandPath(base))
	if err != nil {
		return err
	}
	matches, err := inst.Match(ctx, e.patterns)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		status := "REQUIRED"
		if e.optional {
			status = "optional"
		}
		ports.Log(ctx, ports.LevelWarn, "no environments found",
			ports.F("node", n.Path()), ports.F("dependencies", strings.Join(e.patterns, ", ")), ports.F("status", status))
		if !e.optional && s.RunMode() == settings.RunModeBuild {
			return builderr.Configuration("no environment found that matches the project requirements").
				WithDetails("missing environment: " + strings.Join(e.patterns, ", "))
		}
		return nil
	}

	if e.mode == settings.ExpandHighestScoring {
		best := Best(matches, e.ranker)
		ports.Log(ctx, ports.LevelDebug, "best scoring environment",
			ports.F("environment", best.Description()), ports.F("candidates", len(matches)))
		matches = []Match{best}
	}
	e.matches = matches

	for _, m := range matches {
		env := instructions.New(m.Description(), instructions.KindEnvironment,
			instructions.WithExtension(&Environment{deps: m}))
		if err := n.AddChild(env); err != nil {
			return err
		}
		if _, err := instructions.InstantiateAll(env, e.templates); err != nil {
			return err
		}
	}
	return nil
}

// DescribeNode lists the required dependencies.
func (e *Environments) DescribeNode() string {
	text := "dependencies: " + strings.Join(e.patterns, ", ")
	if e.optional {
		text += " (optional)"
	}
	return fmt.Sprintf("%s, expansion: %s", text, e.mode)
}

// Environment is the extension of one matched environment node. Its
// dependencies are applied to the process environment around the
// preflight checks and every step of its subtree.
type Environment struct {
	deps Match
}

// Dependencies returns the matched dependencies in pattern order.
func (e *Environment) Dependencies() Match { return e.deps }

// Apply applies every dependency in order.
func (e *Environment) Apply(ctx context.Context) error {
	for _, d := range e.deps {
		if err := d.Apply(ctx); err != nil {
			return builderr.Wrap(builderr.KindConfiguration, err, "cannot apply environment")
		}
	}
	return nil
}

// Scope runs fn with the dependencies applied and restores the process
// environment afterwards.
func (e *Environment) Scope(ctx context.Context, _ *instructions.Session, _ *instructions.Node, fn func() error) error {
	return procstate.Do("", func() error {
		if err := e.Apply(ctx); err != nil {
			return err
		}
		return fn()
	})
}

// DescribeNode lists the dependency folders.
func (e *Environment) DescribeNode() string {
	return "dependencies: " + strings.Join(e.deps.Folders(), ", ")
}

var (
	_ instructions.Preparer  = (*Environments)(nil)
	_ instructions.Describer = (*Environments)(nil)
	_ instructions.Scoper    = (*Environment)(nil)
	_ instructions.Describer = (*Environment)(nil)
)
