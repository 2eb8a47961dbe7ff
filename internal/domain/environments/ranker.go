package environments

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Ranker is a total order over matches. Better reports whether a ranks
// above b.
type Ranker interface {
	Better(a, b Match) bool
}

// RankerFunc adapts a function to a Ranker.
type RankerFunc func(a, b Match) bool

// Better calls f.
func (f RankerFunc) Better(a, b Match) bool { return f(a, b) }

// DefaultRanker prefers higher dependency scores, compared in pattern
// order, then higher versions found in the folder names, then the lower
// sorted folder list.
var DefaultRanker Ranker = RankerFunc(func(a, b Match) bool {
	if c := compareScores(a, b); c != 0 {
		return c > 0
	}
	if c := compareVersions(a, b); c != 0 {
		return c > 0
	}
	fa, fb := a.Folders(), b.Folders()
	sort.Strings(fa)
	sort.Strings(fb)
	return strings.Join(fa, "\x00") < strings.Join(fb, "\x00")
})

// Best returns the highest ranking match, or nil if there is none.
func Best(matches []Match, r Ranker) Match {
	if r == nil {
		r = DefaultRanker
	}
	var best Match
	for _, m := range matches {
		if best == nil || r.Better(m, best) {
			best = m
		}
	}
	return best
}

// Rank sorts matches from best to worst.
func Rank(matches []Match, r Ranker) {
	if r == nil {
		r = DefaultRanker
	}
	sort.SliceStable(matches, func(i, j int) bool { return r.Better(matches[i], matches[j]) })
}

func compareScores(a, b Match) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].Score() != b[i].Score() {
			if a[i].Score() > b[i].Score() {
				return 1
			}
			return -1
		}
	}
	return 0
}

var versionPattern = regexp.MustCompile(`v?\d+(\.\d+){0,2}(-[0-9A-Za-z.-]+)?$`)

// folderVersion extracts a semantic version from the end of a folder name,
// e.g. "qt-4.7.1" gives "v4.7.1". It returns "" if there is none.
func folderVersion(folder string) string {
	v := versionPattern.FindString(filepath.Base(folder))
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

func compareVersions(a, b Match) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		va, vb := folderVersion(a[i].Folder()), folderVersion(b[i].Folder())
		switch {
		case va == vb:
			continue
		case va == "":
			return -1
		case vb == "":
			return 1
		}
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
	}
	return 0
}
