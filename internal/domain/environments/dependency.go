// Package environments discovers installed dependency packages and expands
// configuration templates once per matching combination of them.
package environments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
	"github.com/felixgeelhaar/makeomatic/internal/procstate"
)

// MarkerFile is the name of the file that turns a folder into a dependency.
const MarkerFile = "MOM_PACKAGE_CONFIGURATION"

// folderVariable is replaced by the dependency folder in directive values.
const folderVariable = "$PWD"

// DirectiveKind names a marker file section.
type DirectiveKind string

const (
	DirectiveExport      DirectiveKind = "export"
	DirectivePathAppend  DirectiveKind = "path.append"
	DirectivePathPrepend DirectiveKind = "path.prepend"
)

// Directive is one environment change requested by a marker file.
type Directive struct {
	Kind     DirectiveKind
	Variable string
	Value    string
}

// ErrNoMarker is returned by LoadDependency for folders without a marker
// file.
var ErrNoMarker = errors.New("no dependency marker file")

// MarkerError reports a marker file that could not be parsed.
type MarkerError struct {
	Path string
	Err  error
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("invalid dependency marker %s: %v", e.Path, e.Err)
}

func (e *MarkerError) Unwrap() error {
	return e.Err
}

// Dependency is an installed package folder described by its marker file.
type Dependency struct {
	folder      string
	enabled     bool
	description string
	score       int
	directives  []Directive
}

// LoadDependency reads the marker file in folder. A dependency is disabled
// unless its marker says "enabled = true".
func LoadDependency(folder string) (*Dependency, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	marker := filepath.Join(abs, MarkerFile)
	if info, err := os.Stat(marker); err != nil || info.IsDir() {
		return nil, ErrNoMarker
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, marker)
	if err != nil {
		return nil, &MarkerError{Path: marker, Err: err}
	}

	d := &Dependency{folder: abs}
	root := cfg.Section(ini.DefaultSection)
	if root.HasKey("enabled") {
		enabled, err := root.Key("enabled").Bool()
		if err != nil {
			return nil, &MarkerError{Path: marker, Err: fmt.Errorf("enabled must be true or false: %w", err)}
		}
		d.enabled = enabled
	}
	if root.HasKey("score") {
		score, err := root.Key("score").Int()
		if err != nil {
			return nil, &MarkerError{Path: marker, Err: fmt.Errorf("score must be an integer: %w", err)}
		}
		d.score = score
	}
	if root.HasKey("description") {
		d.description = strings.TrimSpace(root.Key("description").String())
		if d.description == "" {
			return nil, &MarkerError{Path: marker, Err: errors.New("description cannot be empty")}
		}
	}

	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		kind := DirectiveKind(sec.Name())
		switch kind {
		case DirectiveExport, DirectivePathAppend, DirectivePathPrepend:
		default:
			return nil, &MarkerError{Path: marker, Err: fmt.Errorf("unknown section [%s]", sec.Name())}
		}
		for _, key := range sec.Keys() {
			for _, value := range key.ValueWithShadows() {
				d.directives = append(d.directives, Directive{Kind: kind, Variable: key.Name(), Value: value})
			}
		}
	}
	return d, nil
}

// Folder returns the absolute dependency folder.
func (d *Dependency) Folder() string { return d.folder }

// ContainingFolder returns the installation folder the dependency lives in.
func (d *Dependency) ContainingFolder() string { return filepath.Dir(d.folder) }

// Enabled reports whether the dependency may be used in matches.
func (d *Dependency) Enabled() bool { return d.enabled }

// Score ranks the dependency against alternatives. Higher is better.
func (d *Dependency) Score() int { return d.score }

// Directives returns the environment changes in marker file order.
func (d *Dependency) Directives() []Directive {
	out := make([]Directive, len(d.directives))
	copy(out, d.directives)
	return out
}

// Description returns the marker description, or the folder name.
func (d *Dependency) Description() string {
	if d.description != "" {
		return d.description
	}
	return filepath.Base(d.folder)
}

func (d *Dependency) expand(value string) string {
	return strings.ReplaceAll(value, folderVariable, d.folder)
}

// Apply performs the directives on the process environment. Callers run it
// inside a procstate scope.
func (d *Dependency) Apply(ctx context.Context) error {
	for _, dir := range d.directives {
		value := d.expand(dir.Value)
		var err error
		switch dir.Kind {
		case DirectiveExport:
			err = os.Setenv(dir.Variable, value)
		case DirectivePathAppend:
			err = procstate.AddToPathVariable(dir.Variable, value, procstate.Append)
		case DirectivePathPrepend:
			err = procstate.AddToPathVariable(dir.Variable, value, procstate.Prepend)
		}
		if err != nil {
			return fmt.Errorf("dependency %s: cannot set %s: %w", d.Description(), dir.Variable, err)
		}
		ports.Log(ctx, ports.LevelDebug, "dependency directive applied",
			ports.F("dependency", d.Description()), ports.F("kind", dir.Kind), ports.F("variable", dir.Variable), ports.F("value", value))
	}
	return nil
}
