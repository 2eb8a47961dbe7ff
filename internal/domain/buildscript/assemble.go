package buildscript

import (
	"github.com/felixgeelhaar/makeomatic/internal/domain/environments"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/sourcecode"
)

// AssembleOption configures Assemble.
type AssembleOption func(*assembler)

// WithProviderOptions passes options to the source code provider.
func WithProviderOptions(opts ...sourcecode.Option) AssembleOption {
	return func(a *assembler) {
		a.providerOpts = append(a.providerOpts, opts...)
	}
}

// WithRootPlugins attaches plugins to the build root, e.g. reporters.
func WithRootPlugins(plugins ...instructions.Plugin) AssembleOption {
	return func(a *assembler) {
		a.rootPlugins = append(a.rootPlugins, plugins...)
	}
}

// WithEnvironmentOptions passes options to every environments node.
func WithEnvironmentOptions(opts ...environments.Option) AssembleOption {
	return func(a *assembler) {
		a.envOpts = append(a.envOpts, opts...)
	}
}

type assembler struct {
	providerOpts []sourcecode.Option
	rootPlugins  []instructions.Plugin
	envOpts      []environments.Option
}

// Assemble builds the instructions tree of the script for session s. The
// source location in the settings overrides the one in the script.
func (sc *Script) Assemble(s *instructions.Session, opts ...AssembleOption) (*instructions.Build, error) {
	a := &assembler{}
	for _, opt := range opts {
		opt(a)
	}

	s.Settings.Project.Name = sc.Project.Name
	if sc.MinimumVersion != "" {
		s.Settings.Mom.MinimumVersion = sc.MinimumVersion
	}
	b := instructions.NewBuild(sc.BuildName(), s, instructions.WithPlugins(a.rootPlugins...))

	project := instructions.NewProject(sc.Project.Name)
	location := s.Settings.Project.SourceLocation
	if location == "" {
		location = sc.Project.Source
	}
	hasSource := location != ""
	if hasSource {
		providerOpts := append([]sourcecode.Option{
			sourcecode.WithRevision(sc.Project.Revision),
			sourcecode.WithBranch(sc.Project.Branch),
			sourcecode.WithTag(sc.Project.Tag),
		}, a.providerOpts...)
		provider, err := sourcecode.New(location, s.Runner, s.FS, providerOpts...)
		if err != nil {
			return nil, err
		}
		scm := sourcecode.NewPlugin(provider)
		if err := project.AddPlugin(scm); err != nil {
			return nil, err
		}
		b.SetPrinter(scm)
	}
	for _, p := range nodePlugins(sc.Project.Plugins, sc.Project.Steps, hasSource) {
		if err := project.AddPlugin(p); err != nil {
			return nil, err
		}
	}

	for _, c := range sc.Project.Configurations {
		conf := instructions.NewConfiguration(c.Name, instructions.WithPlugins(nodePlugins(c.Plugins, c.Steps, false)...))
		if err := project.AddChild(conf); err != nil {
			return nil, err
		}
	}
	for _, e := range sc.Project.Environments {
		templates := make([]*instructions.Template, 0, len(e.Configurations))
		for _, c := range e.Configurations {
			templates = append(templates, configurationTemplate(c))
		}
		envOpts := append([]environments.Option(nil), a.envOpts...)
		if e.Optional {
			envOpts = append(envOpts, environments.Optional())
		}
		if err := project.AddChild(environments.New(e.Name, e.Dependencies, templates, envOpts...)); err != nil {
			return nil, err
		}
	}

	if err := b.AddProject(project); err != nil {
		return nil, err
	}
	return b, nil
}

// configurationTemplate describes c so every environment gets its own
// plugins.
func configurationTemplate(c ConfigurationSpec) *instructions.Template {
	factories := make([]instructions.PluginFactory, 0, len(c.Plugins)+1)
	for _, spec := range c.Plugins {
		factories = append(factories, func() instructions.Plugin { return NewCommandPlugin(spec) })
	}
	if len(c.Steps) > 0 {
		steps := c.Steps
		factories = append(factories, func() instructions.Plugin { return newStepsPlugin(steps, false) })
	}
	return &instructions.Template{
		Name:    c.Name,
		Kind:    instructions.KindConfiguration,
		Plugins: factories,
	}
}

func nodePlugins(specs []PluginSpec, steps StepsSpec, hasSource bool) []instructions.Plugin {
	plugins := make([]instructions.Plugin, 0, len(specs)+1)
	for _, spec := range specs {
		p := NewCommandPlugin(spec)
		p.hasSource = hasSource
		plugins = append(plugins, p)
	}
	if len(steps) > 0 {
		plugins = append(plugins, newStepsPlugin(steps, hasSource))
	}
	return plugins
}
