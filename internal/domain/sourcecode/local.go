package sourcecode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// LocalIdentifier selects the local folder provider.
const LocalIdentifier = "local"

// Local uses a folder on the build host as the project's source code. Its
// revision is a digest of the folder's file names, sizes and modification
// times, so every change to the tree yields a new revision.
type Local struct {
	source
}

// NewLocal creates a provider for the folder at path.
func NewLocal(path string, opts ...Option) *Local {
	return &Local{source: newSource(ports.ExpandPath(path), opts)}
}

// Identifier returns "local".
func (l *Local) Identifier() string { return LocalIdentifier }

// Check verifies that the folder exists.
func (l *Local) Check(context.Context) error {
	info, err := os.Stat(l.url)
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "source folder "+l.url+" is not accessible")
	}
	if !info.IsDir() {
		return builderr.Configuration("source location %s is not a folder", l.url)
	}
	return nil
}

// CheckoutStep adds an action that copies the folder into srcDir.
func (l *Local) CheckoutStep(step *executomat.Step, srcDir string) error {
	cp := actions.NewCallback(fmt.Sprintf("copy %s to %s", l.url, srcDir), func(ctx context.Context) (string, error) {
		n, err := copyTree(ctx, l.url, srcDir)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d files copied", n), nil
	})
	_, err := step.AddAction(executomat.PhaseMain, cp)
	return err
}

// CurrentRevision returns the digest of the folder.
func (l *Local) CurrentRevision(ctx context.Context) (string, error) {
	if err := l.Check(ctx); err != nil {
		return "", err
	}
	return digestTree(ctx, l.url)
}

// RevisionsSince returns the current revision unless it equals revision.
// A folder has no history, so there is at most one newer revision.
func (l *Local) RevisionsSince(ctx context.Context, revision string, _ int) ([]Revision, error) {
	current, err := l.CurrentRevision(ctx)
	if err != nil {
		return nil, err
	}
	if current == revision {
		return []Revision{}, nil
	}
	return []Revision{{ID: current, URL: l.url}}, nil
}

// RevisionInfo describes the current state of the folder.
func (l *Local) RevisionInfo(ctx context.Context) (Revision, error) {
	current, err := l.CurrentRevision(ctx)
	if err != nil {
		return Revision{}, err
	}
	rev := Revision{
		ID:      current,
		Short:   current[:12],
		Message: "local source folder " + l.url,
		URL:     l.url,
	}
	if info, err := os.Stat(l.url); err == nil {
		rev.CommitTime = info.ModTime().Format(time.RFC3339)
	}
	return rev, nil
}

type fileEntry struct {
	rel  string
	size int64
	mod  time.Time
}

func listTree(ctx context.Context, root string) ([]fileEntry, error) {
	entries := make([]fileEntry, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return builderr.Interrupted(err)
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry{rel: filepath.ToSlash(rel), size: info.Size(), mod: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, builderr.Annotate(err, "cannot read source folder "+root)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}

func digestTree(ctx context.Context, root string) (string, error) {
	entries, err := listTree(ctx, root)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", e.rel, e.size, e.mod.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyTree(ctx context.Context, from, to string) (int, error) {
	entries, err := listTree(ctx, from)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return 0, builderr.Interrupted(err)
		}
		src := filepath.Join(from, filepath.FromSlash(e.rel))
		dst := filepath.Join(to, filepath.FromSlash(e.rel))
		if err := copyFile(src, dst); err != nil {
			return 0, builderr.Wrap(builderr.KindBuild, err, "cannot copy "+strings.TrimPrefix(e.rel, "./"))
		}
	}
	return len(entries), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var _ Provider = (*Local)(nil)
