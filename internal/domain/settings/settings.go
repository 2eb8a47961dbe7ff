// Package settings holds the configurable values of a build run: the build
// type, the build sequence, folder names and environment expansion rules.
package settings

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// Run modes.
const (
	RunModeBuild    = "build"
	RunModeDescribe = "describe"
	RunModeQuery    = "query"
	RunModePrint    = "print"
)

// ExpansionMode selects which matching environments get a configuration.
type ExpansionMode string

const (
	// ExpandIgnore builds without looking for environments.
	ExpandIgnore ExpansionMode = "ignore"
	// ExpandAll builds every matching environment.
	ExpandAll ExpansionMode = "all"
	// ExpandHighestScoring builds only the best ranked environment.
	ExpandHighestScoring ExpansionMode = "highest-scoring"
)

// Valid reports whether m is a known mode.
func (m ExpansionMode) Valid() bool {
	switch m {
	case ExpandIgnore, ExpandAll, ExpandHighestScoring:
		return true
	}
	return false
}

// StepDefinition is one entry of the build sequence: the step name, the
// build types it is enabled for and whether it runs after a failure.
type StepDefinition struct {
	Name                  string `yaml:"name" toml:"name"`
	BuildTypes            string `yaml:"buildtypes" toml:"buildtypes"`
	IgnorePreviousFailure bool   `yaml:"ignorepreviousfailure,omitempty" toml:"ignorepreviousfailure"`
}

// StepSpec is a build sequence entry resolved for one build type.
type StepSpec struct {
	Name                  string
	Enabled               bool
	IgnorePreviousFailure bool
}

// MomSettings describes the framework itself.
type MomSettings struct {
	Version        string `yaml:"version" toml:"version"`
	MinimumVersion string `yaml:"minimumversion,omitempty" toml:"minimumversion"`
}

// ScriptSettings control one invocation.
type ScriptSettings struct {
	RunMode    string `yaml:"runmode" toml:"runmode"`
	ClientName string `yaml:"clientname,omitempty" toml:"clientname"`
	LogLevel   string `yaml:"loglevel" toml:"loglevel"`
	LogJSON    bool   `yaml:"logjson,omitempty" toml:"logjson"`
}

// ProjectSettings describe the project layout and build sequence.
type ProjectSettings struct {
	Name                  string            `yaml:"name,omitempty" toml:"name"`
	BuildType             string            `yaml:"buildtype" toml:"buildtype"`
	BuildSequence         []StepDefinition  `yaml:"buildsequence" toml:"buildsequence"`
	BuildSequenceSwitches string            `yaml:"buildsequenceswitches,omitempty" toml:"buildsequenceswitches"`
	BuildTypeDescriptions map[string]string `yaml:"buildtypedescriptions" toml:"buildtypedescriptions"`
	SourceLocation        string            `yaml:"sourcelocation,omitempty" toml:"sourcelocation"`
	Revision              string            `yaml:"revision,omitempty" toml:"revision"`
	Branch                string            `yaml:"branch,omitempty" toml:"branch"`
	Tag                   string            `yaml:"tag,omitempty" toml:"tag"`
	SourceDir             string            `yaml:"srcdir" toml:"srcdir"`
	PackagesDir           string            `yaml:"packagesdir" toml:"packagesdir"`
	DocsDir               string            `yaml:"docsdir" toml:"docsdir"`
	TempDir               string            `yaml:"tempdir" toml:"tempdir"`
	LogDir                string            `yaml:"logdir" toml:"logdir"`
}

// ConfigurationSettings apply to every configuration node.
type ConfigurationSettings struct {
	BuildDir  string `yaml:"builddir" toml:"builddir"`
	TargetDir string `yaml:"targetdir" toml:"targetdir"`
}

// EnvironmentsSettings control dependency discovery.
type EnvironmentsSettings struct {
	BaseDir        string                   `yaml:"basedir" toml:"basedir"`
	ExpansionModes map[string]ExpansionMode `yaml:"expansionmodes" toml:"expansionmodes"`
}

// SystemSettings describe the build host.
type SystemSettings struct {
	ExtraPaths     []string `yaml:"extrapaths,omitempty" toml:"extrapaths"`
	CommandTimeout string   `yaml:"commandtimeout,omitempty" toml:"commandtimeout"`
}

// BuildSettings control the build root.
type BuildSettings struct {
	MoveOldDirectories bool `yaml:"moveolddirectories" toml:"moveolddirectories"`
	DisableShutdown    bool `yaml:"disableshutdown,omitempty" toml:"disableshutdown"`
}

// QueueSettings locate the build-status database.
type QueueSettings struct {
	Database string `yaml:"database" toml:"database"`
}

// Settings is the complete configuration of a run.
type Settings struct {
	Mom           MomSettings           `yaml:"mom" toml:"mom"`
	Script        ScriptSettings        `yaml:"script" toml:"script"`
	Project       ProjectSettings       `yaml:"project" toml:"project"`
	Configuration ConfigurationSettings `yaml:"configuration" toml:"configuration"`
	Environments  EnvironmentsSettings  `yaml:"environments" toml:"environments"`
	System        SystemSettings        `yaml:"system" toml:"system"`
	Build         BuildSettings         `yaml:"build" toml:"build"`
	Queue         QueueSettings         `yaml:"queue" toml:"queue"`
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	return &Settings{
		Mom: MomSettings{Version: Version},
		Script: ScriptSettings{
			RunMode:  RunModeBuild,
			LogLevel: "info",
		},
		Project: ProjectSettings{
			BuildType: "m",
			BuildSequence: []StepDefinition{
				{Name: "create-folders", BuildTypes: "mcgdhpsf"},
				{Name: "checkout", BuildTypes: "mcgdhpsf"},
				{Name: "export-sources", BuildTypes: "mcgdhpsf"},
				{Name: "configure", BuildTypes: "mcgdhpsf"},
				{Name: "build", BuildTypes: "mcgdhpsf"},
				{Name: "test", BuildTypes: "mcgdhpsf"},
				{Name: "install", BuildTypes: "mcgdhpsf"},
				{Name: "create-packages", BuildTypes: "dsfp"},
				{Name: "create-docs", BuildTypes: "mcgdhpsf"},
				{Name: "upload-packages", BuildTypes: "dsf"},
				{Name: "cleanup-packages", BuildTypes: "cdsf", IgnorePreviousFailure: true},
				{Name: "cleanup", BuildTypes: "mcdsf", IgnorePreviousFailure: true},
			},
			BuildTypeDescriptions: map[string]string{
				"e": "Empty build. All build steps are disabled. Useful for debugging build scripts.",
				"m": "Manual build. Does not modify environment variables. Deletes temporary folders.",
				"c": "Continuous build. Builds configurations against the best scoring matching environment. Deletes temporary folders.",
				"d": "Daily build. Builds configurations against every matching environment. Deletes temporary folders.",
				"g": "Continuous build, with cleanup steps disabled.",
				"h": "Hacker build. Similar to manual builds. Does not delete temporary folders.",
				"p": "1337 coder build. Similar to daily builds. Does not delete temporary folders.",
				"s": "Snapshot build. Similar to daily builds. Creates and uploads packages and documentation.",
				"f": "Full build. All build steps are enabled. Useful for debugging build scripts.",
			},
			SourceDir:   "src",
			PackagesDir: "packages",
			DocsDir:     "docs",
			TempDir:     "tmp",
			LogDir:      "log",
		},
		Configuration: ConfigurationSettings{
			BuildDir:  "build",
			TargetDir: "install",
		},
		Environments: EnvironmentsSettings{
			BaseDir: "~/MomEnvironments",
			ExpansionModes: map[string]ExpansionMode{
				"c": ExpandHighestScoring,
				"g": ExpandHighestScoring,
				"d": ExpandAll,
				"s": ExpandAll,
				"p": ExpandAll,
				"f": ExpandAll,
			},
		},
		Build: BuildSettings{MoveOldDirectories: true},
		Queue: QueueSettings{Database: "~/.mom/buildstatus.sqlite"},
	}
}

// Validate checks the settings for values the engine cannot work with.
func (s *Settings) Validate() error {
	if len(s.Project.BuildType) != 1 {
		return builderr.Configuration("build type must be a single character, got %q", s.Project.BuildType)
	}
	if _, ok := s.Project.BuildTypeDescriptions[s.Project.BuildType]; !ok {
		return builderr.Configuration("unknown build type %q", s.Project.BuildType).
			WithDetails("known build types: " + strings.Join(s.BuildTypes(), ", "))
	}
	seen := make(map[string]bool, len(s.Project.BuildSequence))
	for _, def := range s.Project.BuildSequence {
		if def.Name == "" {
			return builderr.Configuration("build sequence contains a step without a name")
		}
		if seen[def.Name] {
			return builderr.Configuration("build sequence defines step %q twice", def.Name)
		}
		seen[def.Name] = true
	}
	for bt, mode := range s.Environments.ExpansionModes {
		if !mode.Valid() {
			return builderr.Configuration("invalid expansion mode %q for build type %q", mode, bt)
		}
	}
	switch s.Script.RunMode {
	case RunModeBuild, RunModeDescribe, RunModeQuery, RunModePrint:
	default:
		return builderr.Configuration("unknown run mode %q", s.Script.RunMode)
	}
	if _, err := s.CommandTimeout(); err != nil {
		return err
	}
	return nil
}

// BuildTypes returns the known build types, sorted.
func (s *Settings) BuildTypes() []string {
	out := make([]string, 0, len(s.Project.BuildTypeDescriptions))
	for bt := range s.Project.BuildTypeDescriptions {
		out = append(out, bt)
	}
	sort.Strings(out)
	return out
}

// BuildTypeDescription returns the description of a build type, empty when
// the build type is unknown.
func (s *Settings) BuildTypeDescription(buildType string) string {
	return s.Project.BuildTypeDescriptions[buildType]
}

// SetBuildStepEnabled enables or disables a step of the build sequence for
// one build type. It has to be called before nodes set up their steps.
func (s *Settings) SetBuildStepEnabled(step, buildType string, enabled bool) error {
	for i := range s.Project.BuildSequence {
		def := &s.Project.BuildSequence[i]
		if def.Name != step {
			continue
		}
		modes := strings.ReplaceAll(def.BuildTypes, buildType, "")
		if enabled {
			modes += buildType
		}
		def.BuildTypes = modes
		return nil
	}
	return builderr.Configuration("undefined build step %q", step)
}

// BuildSteps resolves the build sequence for a build type and applies the
// build sequence switches.
func (s *Settings) BuildSteps(buildType string) ([]StepSpec, error) {
	specs := make([]StepSpec, 0, len(s.Project.BuildSequence))
	for _, def := range s.Project.BuildSequence {
		specs = append(specs, StepSpec{
			Name:                  def.Name,
			Enabled:               buildType != "" && strings.Contains(def.BuildTypes, buildType),
			IgnorePreviousFailure: def.IgnorePreviousFailure,
		})
	}
	if err := ApplySwitches(specs, s.Project.BuildSequenceSwitches); err != nil {
		return nil, err
	}
	return specs, nil
}

// StepNames returns the names of the build sequence in order.
func (s *Settings) StepNames() []string {
	names := make([]string, 0, len(s.Project.BuildSequence))
	for _, def := range s.Project.BuildSequence {
		names = append(names, def.Name)
	}
	return names
}

// ApplySwitches applies a comma separated list of enable-<step> and
// disable-<step> switches to specs.
func ApplySwitches(specs []StepSpec, switches string) error {
	if strings.TrimSpace(switches) == "" {
		return nil
	}
	for _, sw := range strings.Split(switches, ",") {
		sw = strings.TrimSpace(sw)
		var name string
		var enable bool
		switch {
		case strings.HasPrefix(sw, "enable-"):
			name, enable = strings.TrimSpace(strings.TrimPrefix(sw, "enable-")), true
		case strings.HasPrefix(sw, "disable-"):
			name, enable = strings.TrimSpace(strings.TrimPrefix(sw, "disable-")), false
		default:
			return builderr.Configuration("build sequence switch %q does not start with enable- or disable-", sw)
		}
		found := false
		for i := range specs {
			if specs[i].Name == name {
				specs[i].Enabled = enable
				found = true
				break
			}
		}
		if !found {
			return builderr.Configuration("undefined build step %q in build sequence switches", name)
		}
	}
	return nil
}

// ExpansionModeFor returns the expansion mode of a build type. Build types
// without a mapping ignore environments.
func (s *Settings) ExpansionModeFor(buildType string) ExpansionMode {
	if mode, ok := s.Environments.ExpansionModes[buildType]; ok {
		return mode
	}
	return ExpandIgnore
}

// CommandTimeout returns the default timeout for command actions, zero for
// none.
func (s *Settings) CommandTimeout() (time.Duration, error) {
	if s.System.CommandTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.System.CommandTimeout)
	if err != nil || d < 0 {
		return 0, builderr.Configuration("invalid command timeout %q", s.System.CommandTimeout)
	}
	return d, nil
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Project.BuildSequence = append([]StepDefinition(nil), s.Project.BuildSequence...)
	c.Project.BuildTypeDescriptions = make(map[string]string, len(s.Project.BuildTypeDescriptions))
	for k, v := range s.Project.BuildTypeDescriptions {
		c.Project.BuildTypeDescriptions[k] = v
	}
	c.Environments.ExpansionModes = make(map[string]ExpansionMode, len(s.Environments.ExpansionModes))
	for k, v := range s.Environments.ExpansionModes {
		c.Environments.ExpansionModes[k] = v
	}
	c.System.ExtraPaths = append([]string(nil), s.System.ExtraPaths...)
	return &c
}

func (s *Settings) String() string {
	return fmt.Sprintf("build type %s, run mode %s", s.Project.BuildType, s.Script.RunMode)
}
