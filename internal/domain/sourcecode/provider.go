// Package sourcecode provides source code providers and the plugin that
// checks out a project's sources.
package sourcecode

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Revision describes one commit of a repository.
type Revision struct {
	ID             string
	Short          string
	CommitterName  string
	CommitterEmail string
	CommitTime     string
	Message        string
	URL            string
}

// Line renders the revision the way print mode lists it: build type,
// revision and URL separated by single spaces.
func (r Revision) Line(buildType string) string {
	return fmt.Sprintf("%s %s %s", strings.ToUpper(buildType), r.ID, r.URL)
}

// ParseLine parses a line written by Line.
func ParseLine(line string) (buildType string, rev Revision, err error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return "", Revision{}, fmt.Errorf("malformed revision line %q", line)
	}
	return parts[0], Revision{ID: parts[1], URL: parts[2]}, nil
}

// Provider retrieves a project's source code and answers questions about
// its history.
type Provider interface {
	Identifier() string
	URL() string
	// Describe summarizes the URL and the pinned branch, tag and revision.
	Describe() string
	// Pin selects what to check out. Empty values keep the current choice.
	Pin(revision, branch, tag string)
	// Check verifies that the provider can work, e.g. its tool is installed.
	Check(ctx context.Context) error
	// CheckoutStep adds the actions that fetch the sources into srcDir.
	CheckoutStep(step *executomat.Step, srcDir string) error
	CurrentRevision(ctx context.Context) (string, error)
	// RevisionsSince lists the revisions after revision, oldest first. A
	// positive limit keeps only the oldest limit entries.
	RevisionsSince(ctx context.Context, revision string, limit int) ([]Revision, error)
	RevisionInfo(ctx context.Context) (Revision, error)
}

// Option configures a provider.
type Option func(*source)

// WithRevision pins the revision to check out.
func WithRevision(revision string) Option {
	return func(s *source) {
		s.revision = revision
	}
}

// WithBranch pins the branch to check out.
func WithBranch(branch string) Option {
	return func(s *source) {
		s.branch = branch
	}
}

// WithTag pins the tag to check out.
func WithTag(tag string) Option {
	return func(s *source) {
		s.tag = tag
	}
}

// WithCacheDir sets where providers keep local mirrors.
func WithCacheDir(dir string) Option {
	return func(s *source) {
		s.cacheDir = dir
	}
}

// WithTimeout limits every command a provider runs.
func WithTimeout(d time.Duration) Option {
	return func(s *source) {
		s.timeout = d
	}
}

// source holds what every provider shares.
type source struct {
	url      string
	revision string
	branch   string
	tag      string
	cacheDir string
	timeout  time.Duration
}

func newSource(url string, opts []Option) source {
	s := source{
		url:      strings.TrimRight(url, "/"),
		cacheDir: ports.ExpandPath("~/.mom/caches"),
		timeout:  time.Hour,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *source) URL() string { return s.url }

func (s *source) Pin(revision, branch, tag string) {
	if revision != "" {
		s.revision = revision
	}
	if branch != "" {
		s.branch = branch
	}
	if tag != "" {
		s.tag = tag
	}
}

func (s *source) Describe() string {
	parts := []string{s.url}
	if s.branch != "" {
		parts = append(parts, "branch "+s.branch)
	}
	if s.tag != "" {
		parts = append(parts, "tag "+s.tag)
	}
	if s.revision != "" {
		parts = append(parts, "revision "+s.revision)
	}
	return strings.Join(parts, ", ")
}

// ref returns what to check out: the revision, else the tag, else the
// branch, else def.
func (s *source) ref(def string) string {
	switch {
	case s.revision != "":
		return s.revision
	case s.tag != "":
		return s.tag
	case s.branch != "":
		return s.branch
	}
	return def
}

// New creates a provider for url. A "git:" or "local:" prefix selects the
// implementation; otherwise URLs mentioning git use git and existing
// folders are used as local sources.
func New(url string, runner ports.CommandRunner, fs ports.FileSystem, opts ...Option) (Provider, error) {
	if url == "" {
		return nil, builderr.Configuration("no source code location given")
	}
	if rest, ok := stripIdentifier(url, GitIdentifier); ok {
		return NewGit(rest, runner, fs, opts...), nil
	}
	if rest, ok := stripIdentifier(url, LocalIdentifier); ok {
		return NewLocal(rest, opts...), nil
	}
	if strings.Contains(url, GitIdentifier) {
		return NewGit(url, runner, fs, opts...), nil
	}
	if info, err := os.Stat(url); err == nil && info.IsDir() {
		return NewLocal(url, opts...), nil
	}
	return nil, builderr.Configuration("cannot create source code provider for URL %q, unknown implementation", url)
}

func stripIdentifier(url, id string) (string, bool) {
	prefix := id + ":"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(url, prefix)
	if strings.HasPrefix(rest, "//") {
		return "", false
	}
	return rest, true
}
