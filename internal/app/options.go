package app

import (
	"strings"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// RunOptions configures one invocation of a build script.
type RunOptions struct {
	// Script is the path of the build script.
	Script string
	// Mode is one of the settings run modes. Empty means build.
	Mode string
	// Args are the query keys or the print command.
	Args []string

	BuildType         string
	BuildSteps        string
	Revision          string
	SourceURL         string
	Branch            string
	Tag               string
	EnvironmentsDir   string
	DisableShutdown   bool
	IgnoreConfigFiles bool
	// ConfigFile is read after the default configuration files.
	ConfigFile string
	// WorkDir is where the build folder is created. Empty means the
	// current directory.
	WorkDir string
	Verbose bool
	// ShowActions lists every action in the final report.
	ShowActions bool
}

// NewRunOptions creates options for building script.
func NewRunOptions(script string) RunOptions {
	return RunOptions{Script: script, Mode: settings.RunModeBuild}
}

// WithMode sets the run mode and its arguments.
func (o RunOptions) WithMode(mode string, args ...string) RunOptions {
	o.Mode = mode
	o.Args = args
	return o
}

// WithBuildType sets the build type.
func (o RunOptions) WithBuildType(buildType string) RunOptions {
	o.BuildType = buildType
	return o
}

// WithWorkDir sets the folder the build folder is created in.
func (o RunOptions) WithWorkDir(dir string) RunOptions {
	o.WorkDir = dir
	return o
}

// apply copies the command line overrides into st.
func (o RunOptions) apply(st *settings.Settings) error {
	if o.Mode != "" {
		switch o.Mode {
		case settings.RunModeBuild, settings.RunModeDescribe, settings.RunModeQuery, settings.RunModePrint:
			st.Script.RunMode = o.Mode
		default:
			return builderr.Configuration("unknown run mode %q", o.Mode)
		}
	}
	if o.BuildType != "" {
		st.Project.BuildType = strings.ToLower(o.BuildType)
	}
	if o.BuildSteps != "" {
		st.Project.BuildSequenceSwitches = o.BuildSteps
	}
	if o.Revision != "" {
		st.Project.Revision = o.Revision
	}
	if o.SourceURL != "" {
		st.Project.SourceLocation = o.SourceURL
	}
	if o.Branch != "" {
		st.Project.Branch = o.Branch
	}
	if o.Tag != "" {
		st.Project.Tag = o.Tag
	}
	if o.EnvironmentsDir != "" {
		st.Environments.BaseDir = o.EnvironmentsDir
	}
	if o.DisableShutdown {
		st.Build.DisableShutdown = true
	}
	if o.Verbose {
		st.Script.LogLevel = "debug"
	}
	return nil
}

// ParseLevel converts a log level name.
func ParseLevel(name string) (ports.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return ports.LevelDebug, nil
	case "", "info":
		return ports.LevelInfo, nil
	case "warn", "warning":
		return ports.LevelWarn, nil
	case "error":
		return ports.LevelError, nil
	}
	return ports.LevelInfo, builderr.Configuration("unknown log level %q", name)
}
