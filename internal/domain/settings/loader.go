package settings

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// TestsRunningVariable disables configuration files when set to 1.
const TestsRunningVariable = "MOM_TESTS_RUNNING"

// TestsRunning reports whether configuration files must be ignored.
func TestsRunning() bool {
	return os.Getenv(TestsRunningVariable) == "1"
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithGlobalDir sets the system wide configuration folder.
func WithGlobalDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.globalDir = dir
	}
}

// WithUserDir sets the per user configuration folder.
func WithUserDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.userDir = dir
	}
}

// WithHostname sets the host name used for host specific files.
func WithHostname(name string) LoaderOption {
	return func(l *Loader) {
		l.hostname = name
	}
}

// Loader reads configuration files on top of the defaults.
type Loader struct {
	fs        ports.FileSystem
	globalDir string
	userDir   string
	hostname  string
}

// NewLoader creates a Loader reading /etc/mom and ~/.mom.
func NewLoader(fs ports.FileSystem, opts ...LoaderOption) *Loader {
	host, _ := os.Hostname()
	l := &Loader{
		fs:        fs,
		globalDir: "/etc/mom",
		userDir:   "~/.mom",
		hostname:  host,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Candidates returns the configuration files in the order they are
// applied. Later files override earlier ones.
func (l *Loader) Candidates() []string {
	names := []string{"config"}
	if l.hostname != "" {
		names = append(names, ports.SafeName(l.hostname))
	}
	out := make([]string, 0, 8)
	for _, dir := range []string{l.globalDir, l.userDir} {
		if dir == "" {
			continue
		}
		dir = ports.ExpandPath(dir)
		for _, name := range names {
			out = append(out,
				filepath.Join(dir, name+".yaml"),
				filepath.Join(dir, name+".toml"))
		}
	}
	return out
}

// Load applies every existing configuration file to s and returns the
// files that were read. Missing files are skipped.
func (l *Loader) Load(s *Settings) ([]string, error) {
	loaded := make([]string, 0)
	for _, path := range l.Candidates() {
		if !l.fs.Exists(path) {
			continue
		}
		if err := l.LoadFile(s, path); err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// LoadFile applies one YAML or TOML file to s.
func (l *Loader) LoadFile(s *Settings, path string) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "cannot read configuration file "+path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, s)
	default:
		err = decodeYAML(data, s)
	}
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "the configuration file "+path+" contains an error").
			WithDetails("fix or remove the file, or run with --ignore-configuration-files")
	}
	return nil
}

func decodeYAML(data []byte, s *Settings) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, s *Settings) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(s)
}
