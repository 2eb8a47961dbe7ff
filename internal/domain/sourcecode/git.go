package sourcecode

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// GitIdentifier selects the git provider.
const GitIdentifier = "git"

// infoSeparator separates the fields of git's formatted log output.
const infoSeparator = "%x00"

// Git checks out sources from a git repository. It keeps a mirror of the
// repository in the cache folder and clones from there.
type Git struct {
	source
	runner  ports.CommandRunner
	fs      ports.FileSystem
	command string
}

// NewGit creates a git provider for url.
func NewGit(url string, runner ports.CommandRunner, fs ports.FileSystem, opts ...Option) *Git {
	return &Git{
		source:  newSource(url, opts),
		runner:  runner,
		fs:      fs,
		command: "git",
	}
}

// Identifier returns "git".
func (g *Git) Identifier() string { return GitIdentifier }

// MirrorPath returns the folder of the local mirror.
func (g *Git) MirrorPath() string {
	return filepath.Join(g.cacheDir, "clonearmy", ports.SafeName(g.url))
}

// Check verifies that git can be run.
func (g *Git) Check(ctx context.Context) error {
	_, err := g.git(ctx, "", "--version")
	return err
}

// UpdateMirror creates the mirror, or fetches into it if it exists.
func (g *Git) UpdateMirror(ctx context.Context) error {
	mirror := g.MirrorPath()
	if g.fs.Exists(mirror) {
		if !g.fs.IsDir(mirror) {
			return builderr.Framework("mirror of %s at %s exists but is not a directory", g.url, mirror)
		}
		if _, err := g.git(ctx, mirror, "fetch", "--all"); err != nil {
			return builderr.Annotate(err, "cannot update the mirror of "+g.url)
		}
		ports.Log(ctx, ports.LevelDebug, "mirror updated", ports.F("url", g.url), ports.F("path", mirror))
		return nil
	}

	parent := filepath.Dir(mirror)
	if err := g.fs.MkdirAll(parent, 0o755); err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "cannot create cache folder "+parent)
	}
	if _, err := g.git(ctx, parent, "clone", "--mirror", g.url, filepath.Base(mirror)); err != nil {
		return builderr.Annotate(err, "cannot create mirror of "+g.url)
	}
	ports.Log(ctx, ports.LevelInfo, "mirror created", ports.F("url", g.url), ports.F("path", mirror))
	return nil
}

// CheckoutStep updates the mirror, clones it into srcDir and checks out
// the pinned revision, tag or branch.
func (g *Git) CheckoutStep(step *executomat.Step, srcDir string) error {
	update := actions.NewCallback("update mirror of "+g.url, func(ctx context.Context) (string, error) {
		return "", g.UpdateMirror(ctx)
	})
	if _, err := step.AddAction(executomat.PhaseMain, update); err != nil {
		return err
	}
	clone := actions.NewCommand(g.runner, g.command, "clone", "--local", g.MirrorPath(), ".").WithTimeout(g.timeout)
	if _, err := step.AddAction(executomat.PhaseMain, clone, executomat.InDir(srcDir)); err != nil {
		return err
	}
	checkout := actions.NewCommand(g.runner, g.command, "checkout", g.ref("HEAD")).WithTimeout(g.timeout)
	_, err := step.AddAction(executomat.PhaseMain, checkout, executomat.InDir(srcDir))
	return err
}

// CurrentRevision returns the newest commit of the pinned branch or tag.
func (g *Git) CurrentRevision(ctx context.Context) (string, error) {
	if err := g.UpdateMirror(ctx); err != nil {
		return "", err
	}
	out, err := g.git(ctx, g.MirrorPath(), "log", "-n1", "--pretty=format:%H", g.branchOrTag())
	if err != nil {
		return "", builderr.Annotate(err, "cannot read the current revision of "+g.url)
	}
	return strings.TrimSpace(out), nil
}

// RevisionsSince lists the commits after revision, oldest first.
func (g *Git) RevisionsSince(ctx context.Context, revision string, limit int) ([]Revision, error) {
	if revision == "" {
		return nil, builderr.Configuration("no revision given to list revisions since")
	}
	if err := g.UpdateMirror(ctx); err != nil {
		return nil, err
	}
	out, err := g.git(ctx, g.MirrorPath(), "log", "--pretty=format:%H", revision+".."+g.branchOrTag())
	if err != nil {
		return nil, builderr.Annotate(err, "cannot list revisions of "+g.url)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	revs := make([]Revision, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		id := strings.TrimSpace(lines[i])
		if id == "" || id == revision {
			continue
		}
		revs = append(revs, Revision{ID: id, URL: g.url})
	}
	if limit > 0 && len(revs) > limit {
		revs = revs[:limit]
	}
	return revs, nil
}

// RevisionInfo describes the pinned revision, or the newest commit.
func (g *Git) RevisionInfo(ctx context.Context) (Revision, error) {
	format := strings.Join([]string{"%cn", "%ce", "%s", "%ci", "%H", "%h"}, infoSeparator)
	out, err := g.git(ctx, g.MirrorPath(), "log", "-n1", "--pretty=format:"+format, g.ref("HEAD"))
	if err != nil {
		return Revision{}, builderr.Annotate(err, "cannot read revision info of "+g.url)
	}
	fields := strings.Split(strings.TrimRight(out, "\n"), "\x00")
	if len(fields) != 6 {
		return Revision{}, builderr.Configuration("unexpected git log output for %s", g.url).WithDetails(out)
	}
	return Revision{
		CommitterName:  fields[0],
		CommitterEmail: fields[1],
		Message:        fields[2],
		CommitTime:     fields[3],
		ID:             fields[4],
		Short:          fields[5],
		URL:            g.url,
	}, nil
}

func (g *Git) branchOrTag() string {
	switch {
	case g.tag != "":
		return g.tag
	case g.branch != "":
		return g.branch
	}
	return "HEAD"
}

// git runs a git command and returns its output. Commands that cannot be
// started or fail are configuration errors.
func (g *Git) git(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, ports.CommandRequest{
		Command: g.command,
		Args:    args,
		Dir:     dir,
		Timeout: g.timeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", builderr.Interrupted(err)
		}
		return "", builderr.Wrap(builderr.KindConfiguration, err, "cannot run git")
	}
	if res.TimedOut {
		return "", builderr.Configuration("git %s timed out", strings.Join(args, " "))
	}
	if res.ExitCode != 0 {
		return "", builderr.Configuration("git %s failed with exit code %d", strings.Join(args, " "), res.ExitCode).
			WithDetails(strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

var _ Provider = (*Git)(nil)
