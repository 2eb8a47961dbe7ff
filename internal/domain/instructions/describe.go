package instructions

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
)

// Describe writes a human readable outline of the subtree: folders,
// plugins, steps and the actions attached to them.
func (n *Node) Describe(w io.Writer) error {
	var b strings.Builder
	n.describe(&b, cases.Title(language.English), 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func (n *Node) describe(b *strings.Builder, caser cases.Caser, depth int) {
	indent := strings.Repeat("    ", depth)
	fmt.Fprintf(b, "%s%s: %s\n", indent, caser.String(string(n.kind)), n.name)

	base := n.baseDir
	if base == "" {
		base = "(not set)"
	}
	fmt.Fprintf(b, "%s  base dir: %s\n", indent, base)
	if d, ok := n.ext.(Describer); ok {
		if text := d.DescribeNode(); text != "" {
			fmt.Fprintf(b, "%s  %s\n", indent, text)
		}
	}

	for _, p := range n.plugins {
		flags := make([]string, 0, 2)
		if !p.Enabled() {
			flags = append(flags, "disabled")
		}
		if p.Optional() {
			flags = append(flags, "optional")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintf(b, "%s  plugin %s%s\n", indent, p.Name(), suffix)
	}

	for _, s := range n.exec.Steps() {
		if !s.HasActions() {
			continue
		}
		state := "enabled"
		if !s.Enabled() {
			state = "disabled"
		}
		if s.IgnoresPreviousFailure() {
			state += ", runs after failures"
		}
		fmt.Fprintf(b, "%s  step %s (%s)\n", indent, s.Name(), state)
		for _, r := range s.AllActions() {
			phase := ""
			if r.Phase() != executomat.PhaseMain {
				phase = r.Phase().String() + ": "
			}
			fmt.Fprintf(b, "%s    %s%s\n", indent, phase, r.Description())
		}
	}

	for _, c := range n.children {
		c.describe(b, caser, depth+1)
	}
}
