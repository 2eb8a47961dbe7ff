// Package instructions implements the build instructions tree: nodes that
// own an Executomat, plugins and children, and the phased lifecycle that
// walks the tree from prepare to shutdown.
package instructions

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
)

// Kind identifies the role of a node in the tree.
type Kind string

const (
	KindBuild         Kind = "build"
	KindProject       Kind = "project"
	KindConfiguration Kind = "configuration"
	KindEnvironments  Kind = "environments"
	KindEnvironment   Kind = "environment"
)

// IsConfigurationLike reports whether nodes of this kind build
// independently of failed siblings.
func (k Kind) IsConfigurationLike() bool {
	switch k {
	case KindConfiguration, KindEnvironments, KindEnvironment:
		return true
	}
	return false
}

// Preparer is implemented by node extensions that reshape the subtree
// before the node prepares itself.
type Preparer interface {
	PrepareNode(ctx context.Context, s *Session, n *Node) error
}

// Scoper is implemented by node extensions that run the preflight checks
// and every step of the node's subtree inside their own scope.
type Scoper interface {
	Scope(ctx context.Context, s *Session, n *Node, run func() error) error
}

// Describer is implemented by node extensions that add to describe output.
type Describer interface {
	DescribeNode() string
}

// Option configures a Node.
type Option func(*Node)

// WithExtension attaches kind specific behaviour to a node.
func WithExtension(ext any) Option {
	return func(n *Node) {
		n.ext = ext
	}
}

// WithPlugins attaches plugins at construction. Nil and duplicate plugins
// are ignored.
func WithPlugins(plugins ...Plugin) Option {
	return func(n *Node) {
		for _, p := range plugins {
			_ = n.AddPlugin(p)
		}
	}
}

// Node is one element of the build instructions tree.
type Node struct {
	name     string
	kind     Kind
	parent   *Node
	children []*Node
	plugins  []Plugin
	exec     *executomat.Executomat
	ext      any

	baseDir     string
	logDir      string
	packagesDir string

	prepared bool
	setUp    bool
}

// New creates a detached node.
func New(name string, kind Kind, opts ...Option) *Node {
	n := &Node{
		name:     name,
		kind:     kind,
		children: make([]*Node, 0),
		plugins:  make([]Plugin, 0),
		exec:     executomat.New(name),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewProject creates a project node.
func NewProject(name string, opts ...Option) *Node {
	return New(name, KindProject, opts...)
}

// NewConfiguration creates a configuration node.
func NewConfiguration(name string, opts ...Option) *Node {
	return New(name, KindConfiguration, opts...)
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// SetName renames the node. Renaming after prepare does not move folders.
func (n *Node) SetName(name string) { n.name = name }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Extension returns the kind specific behaviour attached to the node.
func (n *Node) Extension() any { return n.ext }

// Executomat returns the node's step executor.
func (n *Node) Executomat() *executomat.Executomat { return n.exec }

// Failed reports whether a step of this node failed.
func (n *Node) Failed() bool { return n.exec.HasFailed() }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Root returns the topmost ancestor.
func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Depth returns the number of ancestors.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Path returns the names from the root down to the node joined by "/".
func (n *Node) Path() string {
	parts := make([]string, 0, n.Depth()+1)
	for p := n; p != nil; p = p.parent {
		parts = append([]string{p.name}, parts...)
	}
	return strings.Join(parts, "/")
}

// Index returns the position of the node among its siblings, -1 for the
// root.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// AddChild appends child. Adding the same child twice, adding a child that
// belongs to another parent or adding an ancestor fails and leaves the
// tree unchanged.
func (n *Node) AddChild(child *Node) error {
	if child == nil {
		return ErrNilNode
	}
	for _, c := range n.children {
		if c == child {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateChild, child.name, n.name)
		}
	}
	if child.parent != nil {
		return fmt.Errorf("%w: %s belongs to %s", ErrHasParent, child.name, child.parent.name)
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("%w: %s", ErrCycle, child.name)
		}
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// RemoveChild detaches child.
func (n *Node) RemoveChild(child *Node) error {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return nil
		}
	}
	return ErrNotAChild
}

// Plugins returns a copy of the plugin list.
func (n *Node) Plugins() []Plugin {
	out := make([]Plugin, len(n.plugins))
	copy(out, n.plugins)
	return out
}

// AddPlugin attaches p to the node.
func (n *Node) AddPlugin(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	for _, existing := range n.plugins {
		if existing == p {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
		}
	}
	p.Attach(n)
	n.plugins = append(n.plugins, p)
	return nil
}

// BaseDir returns the node's build folder.
func (n *Node) BaseDir() (string, error) {
	if n.baseDir == "" {
		return "", fmt.Errorf("%w: base dir of %s", ErrDirNotSet, n.name)
	}
	return n.baseDir, nil
}

// LogDir returns the node's log folder.
func (n *Node) LogDir() (string, error) {
	if n.logDir == "" {
		return "", fmt.Errorf("%w: log dir of %s", ErrDirNotSet, n.name)
	}
	return n.logDir, nil
}

// PackagesDir returns the node's packages folder.
func (n *Node) PackagesDir() (string, error) {
	if n.packagesDir == "" {
		return "", fmt.Errorf("%w: packages dir of %s", ErrDirNotSet, n.name)
	}
	return n.packagesDir, nil
}

// Walk calls fn for the node and every descendant, parents first.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first node in the subtree with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	_ = n.Walk(func(c *Node) error {
		if found == nil && c.name == name {
			found = c
		}
		return nil
	})
	return found
}

// StepsShouldRun reports whether failures registered so far allow this
// node's steps to run. Without any registered failure every node runs.
// After a failure, configuration-like nodes keep running unless they or an
// ancestor failed themselves; all other nodes stop.
func (n *Node) StepsShouldRun(s *Session) bool {
	if s.ReturnCode() == 0 {
		return true
	}
	if !n.kind.IsConfigurationLike() {
		return false
	}
	for p := n; p != nil; p = p.parent {
		if p.exec.HasFailed() {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s", n.kind, n.name)
}
