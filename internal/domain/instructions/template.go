package instructions

import "fmt"

// PluginFactory creates a fresh plugin for every instantiated node.
type PluginFactory func() Plugin

// Template is an immutable description of a subtree. Every call to
// Instantiate builds new nodes, plugins and executors, so instances never
// share state with each other or with the template.
type Template struct {
	Name      string
	Kind      Kind
	Plugins   []PluginFactory
	Children  []*Template
	Extension func() any
}

// Instantiate builds the subtree and attaches it to parent when parent is
// not nil.
func (t *Template) Instantiate(parent *Node) (*Node, error) {
	kind := t.Kind
	if kind == "" {
		kind = KindConfiguration
	}
	opts := make([]Option, 0, 1)
	if t.Extension != nil {
		opts = append(opts, WithExtension(t.Extension()))
	}
	n := New(t.Name, kind, opts...)
	for _, factory := range t.Plugins {
		if err := n.AddPlugin(factory()); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	for _, child := range t.Children {
		if _, err := child.Instantiate(n); err != nil {
			return nil, err
		}
	}
	if parent != nil {
		if err := parent.AddChild(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// InstantiateAll builds every template below parent in order.
func InstantiateAll(parent *Node, templates []*Template) ([]*Node, error) {
	out := make([]*Node, 0, len(templates))
	for _, t := range templates {
		n, err := t.Instantiate(parent)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}
