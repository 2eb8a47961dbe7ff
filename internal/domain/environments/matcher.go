package environments

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// Match is one combination of installed dependencies, one per requested
// pattern, in pattern order.
type Match []*Dependency

// Folders returns the dependency folders of the match in pattern order.
func (m Match) Folders() []string {
	out := make([]string, len(m))
	for i, d := range m {
		out[i] = d.Folder()
	}
	return out
}

// Description joins the dependency descriptions.
func (m Match) Description() string {
	names := make([]string, len(m))
	for i, d := range m {
		names[i] = d.Description()
	}
	return strings.Join(names, " - ")
}

// key identifies the unordered folder set of the match.
func (m Match) key() string {
	folders := m.Folders()
	sort.Strings(folders)
	return strings.Join(folders, "\x00")
}

// Installation is the set of enabled dependencies found below a root.
type Installation struct {
	root string
	deps map[string]*Dependency
}

// Discover scans root for dependency folders. Folders holding an enabled
// dependency are not searched further; all other folders are. A missing
// root yields an empty installation.
func Discover(ctx context.Context, root string) (*Installation, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, builderr.Wrap(builderr.KindConfiguration, err, "invalid environments folder")
	}
	inst := &Installation{root: filepath.Clean(abs), deps: make(map[string]*Dependency)}
	if info, err := os.Stat(inst.root); err != nil || !info.IsDir() {
		ports.Log(ctx, ports.LevelWarn, "environments folder not found", ports.F("folder", inst.root))
		return inst, nil
	}
	inst.scan(ctx, inst.root)
	return inst, nil
}

func (inst *Installation) scan(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		ports.Log(ctx, ports.LevelWarn, "cannot read environments folder", ports.F("folder", dir), ports.F("error", err))
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folder := filepath.Join(dir, e.Name())
		dep, err := LoadDependency(folder)
		switch {
		case errors.Is(err, ErrNoMarker):
			inst.scan(ctx, folder)
		case err != nil:
			ports.Log(ctx, ports.LevelWarn, "dependency ignored", ports.F("folder", folder), ports.F("error", err))
		case dep.Enabled():
			ports.Log(ctx, ports.LevelDebug, "dependency found", ports.F("folder", folder))
			inst.deps[folder] = dep
		default:
			ports.Log(ctx, ports.LevelDebug, "dependency disabled", ports.F("folder", folder))
			inst.scan(ctx, folder)
		}
	}
}

// Root returns the scanned folder.
func (inst *Installation) Root() string { return inst.root }

// Dependencies returns the enabled dependencies sorted by folder.
func (inst *Installation) Dependencies() []*Dependency {
	out := make([]*Dependency, 0, len(inst.deps))
	for _, d := range inst.deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Folder() < out[j].Folder() })
	return out
}

// installationFolders returns the distinct folders containing dependencies.
func (inst *Installation) installationFolders() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, d := range inst.Dependencies() {
		f := d.ContainingFolder()
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// upwardPath lists the folders from folder up to the root, leaf first.
func (inst *Installation) upwardPath(folder string) ([]string, error) {
	rel, err := filepath.Rel(inst.root, folder)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, builderr.Framework("dependency folder %s is outside of %s", folder, inst.root)
	}
	levels := []string{folder}
	for cur := folder; cur != inst.root; {
		cur = filepath.Dir(cur)
		levels = append(levels, cur)
	}
	return levels, nil
}

// Match finds every combination of enabled dependencies that satisfies
// patterns, deduplicated by folder set. Patterns use path.Match syntax.
func (inst *Installation) Match(ctx context.Context, patterns []string) ([]Match, error) {
	if len(patterns) == 0 {
		return nil, builderr.Configuration("no dependency patterns given")
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, builderr.Wrap(builderr.KindConfiguration, err, "invalid dependency pattern "+p)
		}
	}

	s := &search{inst: inst, patterns: patterns, listing: make(map[string][]string)}
	seen := make(map[string]bool)
	out := make([]Match, 0)
	for _, folder := range inst.installationFolders() {
		levels, err := inst.upwardPath(folder)
		if err != nil {
			return nil, err
		}
		remaining := make([]int, len(patterns))
		for i := range remaining {
			remaining[i] = i
		}
		for _, picks := range s.walk(ctx, levels, s.list(ctx, levels[0]), remaining, nil) {
			m := s.ordered(picks)
			k := m.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, m)
		}
	}
	ports.Log(ctx, ports.LevelDebug, "environment matches",
		ports.F("patterns", strings.Join(patterns, ", ")), ports.F("count", len(out)))
	return out, nil
}

type pick struct {
	dep     *Dependency
	pattern int
}

type search struct {
	inst     *Installation
	patterns []string
	listing  map[string][]string
}

func (s *search) list(ctx context.Context, dir string) []string {
	if names, ok := s.listing[dir]; ok {
		return names
	}
	names := make([]string, 0)
	entries, err := os.ReadDir(dir)
	if err != nil {
		ports.Log(ctx, ports.LevelWarn, "cannot read environments folder", ports.F("folder", dir), ports.F("error", err))
	}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	s.listing[dir] = names
	return names
}

// walk consumes the entries of levels[0] one at a time. Every entry that
// matches a remaining pattern forks a branch that continues without that
// pattern; the search also continues without picking the entry. Once a
// level is exhausted the search moves one folder up, but only if the
// branch already picked something.
func (s *search) walk(ctx context.Context, levels, entries []string, remaining []int, picked []pick) [][]pick {
	for len(entries) == 0 {
		if len(levels) < 2 || len(picked) == 0 {
			return nil
		}
		levels = levels[1:]
		entries = s.list(ctx, levels[0])
	}

	entry, rest := entries[0], entries[1:]
	folder := filepath.Join(levels[0], entry)
	out := make([][]pick, 0)
	for i, idx := range remaining {
		if ok, _ := path.Match(s.patterns[idx], entry); !ok {
			continue
		}
		dep, ok := s.inst.deps[folder]
		if !ok {
			continue
		}
		next := make([]pick, len(picked), len(picked)+1)
		copy(next, picked)
		next = append(next, pick{dep: dep, pattern: idx})
		left := make([]int, 0, len(remaining)-1)
		left = append(left, remaining[:i]...)
		left = append(left, remaining[i+1:]...)
		if len(left) == 0 {
			out = append(out, next)
			continue
		}
		out = append(out, s.walk(ctx, levels, rest, left, next)...)
	}
	return append(out, s.walk(ctx, levels, rest, remaining, picked)...)
}

func (s *search) ordered(picks []pick) Match {
	m := make(Match, len(s.patterns))
	for _, p := range picks {
		m[p.pattern] = p.dep
	}
	return m
}
