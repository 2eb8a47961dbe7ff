// Package buildscript reads YAML build scripts and assembles them into an
// instructions tree.
package buildscript

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Validation errors.
var (
	ErrNoProjectName    = errors.New("the project needs a name")
	ErrUnnamedNode      = errors.New("every configuration and environment needs a name")
	ErrDuplicateName    = errors.New("sibling nodes need unique names")
	ErrNoDependencies   = errors.New("environments need at least one dependency pattern")
	ErrActionKind       = errors.New("an action needs exactly one of shell, command, mkdir or rmdir")
	ErrUnknownPhase     = errors.New("unknown action phase")
	ErrNoPluginCommand  = errors.New("command plugins need a command")
	ErrInvalidTimeout   = errors.New("invalid timeout")
)

// Script is a parsed build script.
type Script struct {
	// Path is the file the script was read from.
	Path           string      `yaml:"-"`
	Name           string      `yaml:"name,omitempty"`
	MinimumVersion string      `yaml:"minimumversion,omitempty"`
	Project        ProjectSpec `yaml:"project"`
}

// ProjectSpec describes the project node.
type ProjectSpec struct {
	Name           string              `yaml:"name"`
	Source         string              `yaml:"source,omitempty"`
	Branch         string              `yaml:"branch,omitempty"`
	Tag            string              `yaml:"tag,omitempty"`
	Revision       string              `yaml:"revision,omitempty"`
	Plugins        []PluginSpec        `yaml:"plugins,omitempty"`
	Steps          StepsSpec           `yaml:"steps,omitempty"`
	Configurations []ConfigurationSpec `yaml:"configurations,omitempty"`
	Environments   []EnvironmentsSpec  `yaml:"environments,omitempty"`
}

// ConfigurationSpec describes a configuration node.
type ConfigurationSpec struct {
	Name    string       `yaml:"name"`
	Plugins []PluginSpec `yaml:"plugins,omitempty"`
	Steps   StepsSpec    `yaml:"steps,omitempty"`
}

// EnvironmentsSpec describes an environments node. Its configurations are
// instantiated once per matching environment.
type EnvironmentsSpec struct {
	Name           string              `yaml:"name"`
	Dependencies   []string            `yaml:"dependencies"`
	Optional       bool                `yaml:"optional,omitempty"`
	Configurations []ConfigurationSpec `yaml:"configurations,omitempty"`
}

// StepsSpec maps build step names to the actions added to them.
type StepsSpec map[string][]ActionSpec

// ActionSpec describes one action. Exactly one of Shell, Command, MkDir
// and RmDir is set.
type ActionSpec struct {
	Shell                 string   `yaml:"shell,omitempty"`
	Command               []string `yaml:"command,omitempty"`
	MkDir                 string   `yaml:"mkdir,omitempty"`
	RmDir                 string   `yaml:"rmdir,omitempty"`
	Description           string   `yaml:"description,omitempty"`
	Dir                   string   `yaml:"dir,omitempty"`
	Phase                 string   `yaml:"phase,omitempty"`
	Timeout               string   `yaml:"timeout,omitempty"`
	IgnorePreviousFailure bool     `yaml:"ignorepreviousfailure,omitempty"`
}

// PluginSpec describes a plugin that wraps a command line tool. Its
// preflight check runs the tool to verify it is installed and recent
// enough; its steps add invocations of the tool.
type PluginSpec struct {
	Name           string                `yaml:"name,omitempty"`
	Command        string                `yaml:"command"`
	VersionArg     string                `yaml:"versionarg,omitempty"`
	MinimumVersion string                `yaml:"minimumversion,omitempty"`
	Optional       bool                  `yaml:"optional,omitempty"`
	SearchPaths    []string              `yaml:"searchpaths,omitempty"`
	Timeout        string                `yaml:"timeout,omitempty"`
	Steps          map[string][][]string `yaml:"steps,omitempty"`
}

// DisplayName returns the plugin name, or its command.
func (p PluginSpec) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Command
}

// Load reads and parses the build script at path.
func Load(fs ports.FileSystem, path string) (*Script, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, builderr.Wrap(builderr.KindConfiguration, err, "cannot read build script "+path)
	}
	sc, err := Parse(data)
	if err != nil {
		var be *builderr.Error
		if errors.As(err, &be) {
			return nil, be.WithDetails(fmt.Sprintf("in build script %s", path))
		}
		return nil, err
	}
	sc.Path = path
	return sc, nil
}

// Parse parses and validates a build script. Unknown fields are errors.
func Parse(data []byte) (*Script, error) {
	var sc Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, builderr.Configuration("the build script is empty")
		}
		return nil, builderr.Wrap(builderr.KindConfiguration, err, "the build script contains an error")
	}
	if err := sc.Validate(); err != nil {
		return nil, builderr.Wrap(builderr.KindConfiguration, err, "the build script is invalid")
	}
	return &sc, nil
}

// BuildName returns the name of the build root.
func (sc *Script) BuildName() string {
	if sc.Name != "" {
		return sc.Name
	}
	return sc.Project.Name
}

// Validate checks the script for structural errors.
func (sc *Script) Validate() error {
	p := sc.Project
	if p.Name == "" {
		return ErrNoProjectName
	}
	if err := validateNode("project "+p.Name, p.Plugins, p.Steps); err != nil {
		return err
	}

	names := make(map[string]bool)
	unique := func(name string) error {
		if name == "" {
			return ErrUnnamedNode
		}
		if names[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		names[name] = true
		return nil
	}
	for _, c := range p.Configurations {
		if err := unique(c.Name); err != nil {
			return err
		}
		if err := validateNode("configuration "+c.Name, c.Plugins, c.Steps); err != nil {
			return err
		}
	}
	for _, e := range p.Environments {
		if err := unique(e.Name); err != nil {
			return err
		}
		if len(e.Dependencies) == 0 {
			return fmt.Errorf("%w: %s", ErrNoDependencies, e.Name)
		}
		inner := make(map[string]bool)
		for _, c := range e.Configurations {
			if c.Name == "" {
				return ErrUnnamedNode
			}
			if inner[c.Name] {
				return fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
			}
			inner[c.Name] = true
			if err := validateNode("configuration "+c.Name, c.Plugins, c.Steps); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateNode(where string, plugins []PluginSpec, steps StepsSpec) error {
	for _, p := range plugins {
		if p.Command == "" {
			return fmt.Errorf("%w (%s)", ErrNoPluginCommand, where)
		}
		if _, err := parseTimeout(p.Timeout); err != nil {
			return fmt.Errorf("%w: plugin %s in %s", err, p.DisplayName(), where)
		}
	}
	for step, list := range steps {
		for i, a := range list {
			if err := a.validate(); err != nil {
				return fmt.Errorf("%w: action %d of step %s in %s", err, i+1, step, where)
			}
		}
	}
	return nil
}

func (a ActionSpec) validate() error {
	kinds := 0
	for _, set := range []bool{a.Shell != "", len(a.Command) > 0, a.MkDir != "", a.RmDir != ""} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return ErrActionKind
	}
	if _, err := parsePhase(a.Phase); err != nil {
		return err
	}
	_, err := parseTimeout(a.Timeout)
	return err
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimeout, s)
	}
	return d, nil
}
