package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// DependencyMarker is the file name that marks a dependency folder.
const DependencyMarker = "MOM_PACKAGE_CONFIGURATION"

// DependencyBuilder builds dependency folders for environment tests.
type DependencyBuilder struct {
	enabled     bool
	description string
	score       *int
	sections    map[string][][2]string
	order       []string
}

// NewDependency creates a builder for an enabled dependency.
func NewDependency() *DependencyBuilder {
	return &DependencyBuilder{
		enabled:  true,
		sections: make(map[string][][2]string),
	}
}

// Disabled marks the dependency as disabled.
func (b *DependencyBuilder) Disabled() *DependencyBuilder {
	b.enabled = false
	return b
}

// WithDescription sets the dependency description.
func (b *DependencyBuilder) WithDescription(description string) *DependencyBuilder {
	b.description = description
	return b
}

// WithScore sets the dependency score.
func (b *DependencyBuilder) WithScore(score int) *DependencyBuilder {
	b.score = &score
	return b
}

// WithExport exports variable with value.
func (b *DependencyBuilder) WithExport(variable, value string) *DependencyBuilder {
	return b.with("export", variable, value)
}

// WithPathAppend appends value to the path list variable.
func (b *DependencyBuilder) WithPathAppend(variable, value string) *DependencyBuilder {
	return b.with("path.append", variable, value)
}

// WithPathPrepend prepends value to the path list variable.
func (b *DependencyBuilder) WithPathPrepend(variable, value string) *DependencyBuilder {
	return b.with("path.prepend", variable, value)
}

func (b *DependencyBuilder) with(section, key, value string) *DependencyBuilder {
	if _, ok := b.sections[section]; !ok {
		b.order = append(b.order, section)
	}
	b.sections[section] = append(b.sections[section], [2]string{key, value})
	return b
}

// Marker renders the marker file.
func (b *DependencyBuilder) Marker() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "enabled = %t\n", b.enabled)
	if b.description != "" {
		fmt.Fprintf(&sb, "description = %s\n", b.description)
	}
	if b.score != nil {
		fmt.Fprintf(&sb, "score = %d\n", *b.score)
	}
	for _, section := range b.order {
		fmt.Fprintf(&sb, "\n[%s]\n", section)
		for _, kv := range b.sections[section] {
			fmt.Fprintf(&sb, "%s = %s\n", kv[0], kv[1])
		}
	}
	return sb.String()
}

// WriteTo creates root/rel with the marker file and returns the folder.
func (b *DependencyBuilder) WriteTo(t *testing.T, root, rel string) string {
	t.Helper()

	WriteTempFile(t, filepath.Join(root, rel), DependencyMarker, b.Marker())
	return filepath.Join(root, rel)
}

// EnvironmentTree writes a tree of dependency folders below root. Keys are
// folder paths relative to root.
func EnvironmentTree(t *testing.T, root string, deps map[string]*DependencyBuilder) {
	t.Helper()

	rels := make([]string, 0, len(deps))
	for rel := range deps {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		deps[rel].WriteTo(t, root, rel)
	}
}
